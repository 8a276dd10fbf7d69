package main

import "github.com/Morditux/gatesession/cmd/gatesession/cmd"

func main() {
	cmd.Execute()
}

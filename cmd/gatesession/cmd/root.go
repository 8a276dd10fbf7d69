// Package cmd provides the CLI commands for gatesession.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Morditux/gatesession/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gatesession",
	Short: "gatesession - session-backed web gateway",
	Long: `gatesession runs the tutoring web gateway and the session service it
keeps its sessions in.

Configuration:
  Config is loaded from gatesession.yaml in the current directory,
  $HOME/.gatesession/, or /etc/gatesession/.

  Environment variables can override config values with the GATESESSION_ prefix.
  Example: GATESESSION_GATEWAY_HTTP_ADDR=:9090

Commands:
  gateway     Start the web gateway
  sessiond    Start the session service
  version     Print version information`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./gatesession.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}

// newLogger builds the process logger on stderr.
func newLogger(level string, wrap func(slog.Handler) slog.Handler) *slog.Logger {
	var h slog.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	})
	if wrap != nil {
		h = wrap(h)
	}
	return slog.New(h)
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

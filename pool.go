package gatesession

import (
	"bytes"
	"sync"
)

// bufferPool serves request bodies for the store client and buffered responses.
var bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer wipes the buffer's content and returns it to the pool.
// Session data and response bodies are not retained in pooled memory.
func PutBuffer(buf *bytes.Buffer) {
	b := buf.Bytes()
	clear(b)
	buf.Reset()
	bufferPool.Put(buf)
}

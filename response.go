package gatesession

import (
	"bytes"
	"net/http"
)

// bufferedWriter holds a handler's response until the session has been saved,
// so that Set-Cookie can still be added to the header.
type bufferedWriter struct {
	w            http.ResponseWriter
	buf          *bytes.Buffer
	status       int
	committed    bool
	beforeCommit func()
}

func newBufferedWriter(w http.ResponseWriter) *bufferedWriter {
	return &bufferedWriter{w: w, buf: getBuffer()}
}

func (b *bufferedWriter) Header() http.Header { return b.w.Header() }

func (b *bufferedWriter) WriteHeader(code int) {
	if b.committed {
		b.w.WriteHeader(code)
		return
	}
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if b.committed {
		return b.w.Write(p)
	}
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.buf.Write(p)
}

// Flush commits the buffered response and flushes the underlying writer.
func (b *bufferedWriter) Flush() {
	b.commit()
	if f, ok := b.w.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (b *bufferedWriter) Unwrap() http.ResponseWriter { return b.w }

func (b *bufferedWriter) commit() {
	if b.committed {
		return
	}
	if b.beforeCommit != nil {
		b.beforeCommit()
	}
	b.committed = true

	if b.status == 0 {
		b.status = http.StatusOK
	}
	b.w.WriteHeader(b.status)
	if b.buf.Len() > 0 {
		_, _ = b.w.Write(b.buf.Bytes())
	}
	PutBuffer(b.buf)
	b.buf = nil
}

func (b *bufferedWriter) release() {
	if b.buf != nil {
		PutBuffer(b.buf)
		b.buf = nil
	}
}

package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
)

var readerPool = sync.Pool{
	New: func() any {
		return bytes.NewReader(nil)
	},
}

var bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// putBuffer wipes the buffer's content and returns it to the pool.
func putBuffer(buf *bytes.Buffer) {
	clear(buf.Bytes())
	buf.Reset()
	bufferPool.Put(buf)
}

// encodeData serialises session data as JSON. Empty data encodes to nil so that
// SQL backends store NULL. The returned slice is owned by the caller.
func encodeData(data map[string]any, maxBytes int) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer putBuffer(buf)

	if err := json.NewEncoder(buf).Encode(data); err != nil {
		return nil, fmt.Errorf("failed to encode session data: %w", err)
	}
	if maxBytes > 0 && buf.Len() > maxBytes {
		return nil, ErrSessionTooLarge
	}
	return bytes.Clone(buf.Bytes()), nil
}

// decodeData reverses encodeData. NULL or empty input yields an empty map.
func decodeData(blob []byte, maxBytes int) (map[string]any, error) {
	if maxBytes > 0 && len(blob) > maxBytes {
		return nil, ErrSessionTooLarge
	}

	data := make(map[string]any)
	if len(blob) == 0 {
		return data, nil
	}

	reader := readerPool.Get().(*bytes.Reader)
	reader.Reset(blob)
	defer readerPool.Put(reader)

	if err := json.NewDecoder(reader).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode session data: %w", err)
	}
	return data, nil
}

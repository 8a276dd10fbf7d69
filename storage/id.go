package storage

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"io"
	mrand "math/rand/v2"
	"sync"
)

var idBufferPool = sync.Pool{
	New: func() any {
		// 48 bytes: 16 bytes for raw entropy + 32 bytes for hex encoding.
		b := make([]byte, 48)
		return &b
	},
}

// rngPool reuses *math/rand/v2.Rand instances to amortize the cost of
// seeding from crypto/rand.
var rngPool = sync.Pool{}

// NewID returns a fresh 128-bit session id as 32 lowercase hex characters.
func NewID() (string, error) {
	ptr := idBufferPool.Get().(*[]byte)
	b := *ptr

	entropy := b[:16]

	v := rngPool.Get()
	var rng *mrand.Rand
	if v == nil {
		var seed [32]byte
		if _, err := io.ReadFull(rand.Reader, seed[:]); err != nil {
			clear(b)
			idBufferPool.Put(ptr)
			return "", err
		}
		rng = mrand.New(mrand.NewChaCha8(seed))
	} else {
		rng = v.(*mrand.Rand)
	}

	binary.LittleEndian.PutUint64(entropy[0:8], rng.Uint64())
	binary.LittleEndian.PutUint64(entropy[8:16], rng.Uint64())

	rngPool.Put(rng)

	hexDst := b[16:]
	hex.Encode(hexDst, entropy)
	id := string(hexDst)

	clear(b)
	idBufferPool.Put(ptr)
	return id, nil
}

// validIDChars is a lookup table for valid hex characters (0-9, a-f).
var validIDChars = [256]bool{}

func init() {
	for i := 0; i < len(validIDChars); i++ {
		c := byte(i)
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
			validIDChars[i] = true
		}
	}
}

// ValidID reports whether id has the format produced by NewID.
func ValidID(id string) bool {
	if len(id) != 32 {
		return false
	}
	for i := 0; i < 32; i++ {
		if !validIDChars[id[i]] {
			return false
		}
	}
	return true
}

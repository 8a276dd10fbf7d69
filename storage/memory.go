package storage

import (
	"context"
	"sync"
	"time"

	"github.com/Morditux/gatesession"
)

type memoryEntry struct {
	userID     *int64
	data       []byte
	lastUsedAt time.Time
}

// MemoryStore keeps sessions in process memory. Data goes through the same
// JSON encoding as the persistent backends, so values read back have the
// types a client would see.
type MemoryStore struct {
	mu              sync.RWMutex
	sessions        map[string]memoryEntry
	maxSessionBytes int
}

// NewMemoryStore creates an empty MemoryStore. maxSessionBytes of 0 means unlimited.
func NewMemoryStore(maxSessionBytes int) *MemoryStore {
	return &MemoryStore{
		sessions:        make(map[string]memoryEntry),
		maxSessionBytes: maxSessionBytes,
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*gatesession.Record, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	data, err := decodeData(e.data, s.maxSessionBytes)
	if err != nil {
		return nil, err
	}
	return &gatesession.Record{
		ID:         id,
		UserID:     copyUserID(e.userID),
		LastUsedAt: e.lastUsedAt,
		Data:       data,
	}, nil
}

func (s *MemoryStore) Create(ctx context.Context, rec *gatesession.Record) error {
	blob, err := encodeData(rec.Data, s.maxSessionBytes)
	if err != nil {
		return err
	}
	id, err := NewID()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[id]; exists {
		return ErrDuplicateID
	}
	s.sessions[id] = memoryEntry{userID: copyUserID(rec.UserID), data: blob, lastUsedAt: rec.LastUsedAt}
	rec.ID = id
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, rec *gatesession.Record) error {
	blob, err := encodeData(rec.Data, s.maxSessionBytes)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[rec.ID]; !exists {
		return ErrNotFound
	}
	s.sessions[rec.ID] = memoryEntry{userID: copyUserID(rec.UserID), data: blob, lastUsedAt: rec.LastUsedAt}
	return nil
}

func (s *MemoryStore) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, e := range s.sessions {
		if e.lastUsedAt.Before(before) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) Close() error { return nil }

func copyUserID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

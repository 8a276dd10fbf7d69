package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Morditux/gatesession"
	"github.com/bradfitz/gomemcache/memcache"
)

// MemcachedStore implements Backend using Memcached. Sessions lapse once they
// have not been used for the retention period.
type MemcachedStore struct {
	client          *memcache.Client
	retention       time.Duration
	maxSessionBytes int
}

// MemcachedConfig holds configuration for the Memcached store.
type MemcachedConfig struct {
	Servers         []string
	Retention       time.Duration
	MaxSessionBytes int
	Timeout         time.Duration // Timeout for Memcached operations. 0 means no timeout.
}

// NewMemcachedStore creates a new MemcachedStore.
func NewMemcachedStore(retention time.Duration, servers ...string) *MemcachedStore {
	return NewMemcachedStoreWithConfig(MemcachedConfig{
		Servers:   servers,
		Retention: retention,
		// Don't hang indefinitely when Memcached is down.
		Timeout: 1 * time.Second,
	})
}

// NewMemcachedStoreWithConfig creates a new MemcachedStore with custom configuration.
func NewMemcachedStoreWithConfig(cfg MemcachedConfig) *MemcachedStore {
	client := memcache.New(cfg.Servers...)
	client.Timeout = cfg.Timeout

	return &MemcachedStore{
		client:          client,
		retention:       cfg.Retention,
		maxSessionBytes: cfg.MaxSessionBytes,
	}
}

// Get retrieves a session from Memcached.
func (s *MemcachedStore) Get(ctx context.Context, id string) (*gatesession.Record, error) {
	item, err := s.client.Get(id)
	if err == memcache.ErrCacheMiss {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from memcached: %w", err)
	}

	if s.maxSessionBytes > 0 && len(item.Value) > s.maxSessionBytes {
		return nil, ErrSessionTooLarge
	}

	var rec gatesession.Record
	if err := json.Unmarshal(item.Value, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	rec.ID = id
	return &rec, nil
}

// Create adds a session. Add fails if the key exists, which guards against id collisions.
func (s *MemcachedStore) Create(ctx context.Context, rec *gatesession.Record) error {
	id, err := NewID()
	if err != nil {
		return err
	}

	item, err := s.item(id, rec)
	if err != nil {
		return err
	}
	if err := s.client.Add(item); err != nil {
		if errors.Is(err, memcache.ErrNotStored) {
			return ErrDuplicateID
		}
		return fmt.Errorf("failed to save to memcached: %w", err)
	}
	rec.ID = id
	return nil
}

// Update replaces an existing session. Replace fails if the key is absent.
func (s *MemcachedStore) Update(ctx context.Context, rec *gatesession.Record) error {
	item, err := s.item(rec.ID, rec)
	if err != nil {
		return err
	}
	if err := s.client.Replace(item); err != nil {
		if errors.Is(err, memcache.ErrNotStored) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to save to memcached: %w", err)
	}
	return nil
}

func (s *MemcachedStore) item(id string, rec *gatesession.Record) (*memcache.Item, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer putBuffer(buf)

	stored := *rec
	stored.ID = ""
	if err := json.NewEncoder(buf).Encode(stored); err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	if s.maxSessionBytes > 0 && buf.Len() > s.maxSessionBytes {
		return nil, ErrSessionTooLarge
	}

	var lapsesAt time.Time
	if !rec.LastUsedAt.IsZero() {
		lapsesAt = rec.LastUsedAt.Add(s.retention)
	}

	return &memcache.Item{
		Key:        id,
		Value:      bytes.Clone(buf.Bytes()),
		Expiration: calculateMemcachedExpiration(time.Now(), lapsesAt, s.retention),
	}, nil
}

// Cleanup is a no-op for Memcached as it handles expiration automatically.
func (s *MemcachedStore) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// Close is a no-op for Memcached client.
func (s *MemcachedStore) Close() error {
	return nil
}

// calculateMemcachedExpiration calculates the expiration value for Memcached.
// Memcached treats values > 30 days (60*60*24*30 seconds) as absolute Unix timestamps.
// Values <= 30 days are treated as a delta from the current time.
// A lapse time already in the past yields -1, which Memcached treats as immediately expired.
func calculateMemcachedExpiration(now time.Time, lapsesAt time.Time, retention time.Duration) int32 {
	const maxDelta = 30 * 24 * 60 * 60 // 30 days in seconds

	var duration time.Duration
	if !lapsesAt.IsZero() {
		duration = lapsesAt.Sub(now)
	} else {
		duration = retention
	}

	// A large delta would be read as a timestamp in 1970.
	if duration > maxDelta*time.Second {
		if !lapsesAt.IsZero() {
			return int32(lapsesAt.Unix())
		}
		return int32(now.Add(retention).Unix())
	}

	if duration <= 0 {
		if !lapsesAt.IsZero() {
			return -1
		}
		return 0 // no retention configured: never expire
	}
	if duration < time.Second {
		return 1
	}
	return int32(duration.Seconds())
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Morditux/gatesession"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when Redis cannot be reached.
var ErrRedisUnavailable = errors.New("redis unavailable")

const defaultRedisPrefix = "gatesession:"

// RedisStore implements Backend using Redis. Every write resets the key TTL to
// the retention period, so sessions lapse once they stop being used.
type RedisStore struct {
	rdb             redis.UniversalClient
	prefix          string
	retention       time.Duration
	maxSessionBytes int
	ownsClient      bool
}

// RedisConfig holds configuration for the Redis store.
type RedisConfig struct {
	Addr            string
	Password        string
	DB              int
	Prefix          string
	Retention       time.Duration
	MaxSessionBytes int
	DialTimeout     time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	store := NewRedisStoreWithClient(rdb, cfg)
	store.ownsClient = true
	return store, nil
}

// NewRedisStoreWithClient wraps an existing client. The caller keeps ownership of rdb.
func NewRedisStoreWithClient(rdb redis.UniversalClient, cfg RedisConfig) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultRedisPrefix
	}
	return &RedisStore{
		rdb:             rdb,
		prefix:          cfg.Prefix,
		retention:       cfg.Retention,
		maxSessionBytes: cfg.MaxSessionBytes,
	}
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

func (s *RedisStore) Get(ctx context.Context, id string) (*gatesession.Record, error) {
	blob, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if s.maxSessionBytes > 0 && len(blob) > s.maxSessionBytes {
		return nil, ErrSessionTooLarge
	}

	var rec gatesession.Record
	if err := json.Unmarshal(blob, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	rec.ID = id
	return &rec, nil
}

// Create stores a new session with SET NX so an id collision is never overwritten.
func (s *RedisStore) Create(ctx context.Context, rec *gatesession.Record) error {
	blob, err := s.encode(rec)
	if err != nil {
		return err
	}
	id, err := NewID()
	if err != nil {
		return err
	}

	ok, err := s.rdb.SetNX(ctx, s.key(id), blob, s.retention).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !ok {
		return ErrDuplicateID
	}
	rec.ID = id
	return nil
}

// Update overwrites a session with SET XX, which fails when the key has lapsed.
func (s *RedisStore) Update(ctx context.Context, rec *gatesession.Record) error {
	blob, err := s.encode(rec)
	if err != nil {
		return err
	}

	ok, err := s.rdb.SetXX(ctx, s.key(rec.ID), blob, s.retention).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) encode(rec *gatesession.Record) ([]byte, error) {
	stored := *rec
	stored.ID = ""
	blob, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	if s.maxSessionBytes > 0 && len(blob) > s.maxSessionBytes {
		return nil, ErrSessionTooLarge
	}
	return blob, nil
}

// Cleanup is a no-op for Redis; key TTLs expire abandoned sessions.
func (s *RedisStore) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (s *RedisStore) Close() error {
	if s.ownsClient {
		return s.rdb.Close()
	}
	return nil
}

package storage

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Morditux/gatesession"
)

func largeRecord() *gatesession.Record {
	return &gatesession.Record{
		LastUsedAt: time.Now(),
		Data:       map[string]any{"data": strings.Repeat("A", 1024)}, // 1KB of data
	}
}

func TestStore_MaxSessionBytes(t *testing.T) {
	dbPath := "test_limit.db"
	defer os.Remove(dbPath)
	defer os.Remove(dbPath + "-wal")
	defer os.Remove(dbPath + "-shm")
	ctx := context.Background()

	// 1. Save a large session through a store WITHOUT limit
	unlimitedStore, err := NewSQLiteStoreWithConfig(SQLiteConfig{DSN: dbPath})
	if err != nil {
		t.Fatalf("failed to create unlimited store: %v", err)
	}
	rec := largeRecord()
	if err := unlimitedStore.Create(ctx, rec); err != nil {
		t.Fatalf("failed to save large session: %v", err)
	}
	unlimitedStore.Close()

	// 2. Reopen WITH a limit smaller than the session
	limitedStore, err := NewSQLiteStoreWithConfig(SQLiteConfig{
		DSN:             dbPath,
		MaxSessionBytes: 500,
	})
	if err != nil {
		t.Fatalf("failed to create limited store: %v", err)
	}
	defer limitedStore.Close()

	// 3. Get is refused
	if _, err := limitedStore.Get(ctx, rec.ID); !errors.Is(err, ErrSessionTooLarge) {
		t.Errorf("expected ErrSessionTooLarge on Get, got: %v", err)
	}

	// 4. Update and Create are refused
	if err := limitedStore.Update(ctx, rec); !errors.Is(err, ErrSessionTooLarge) {
		t.Errorf("expected ErrSessionTooLarge on Update, got: %v", err)
	}
	if err := limitedStore.Create(ctx, largeRecord()); !errors.Is(err, ErrSessionTooLarge) {
		t.Errorf("expected ErrSessionTooLarge on Create, got: %v", err)
	}
}

func TestMemoryStore_MaxSessionBytes(t *testing.T) {
	store := NewMemoryStore(500)
	ctx := context.Background()

	if err := store.Create(ctx, largeRecord()); !errors.Is(err, ErrSessionTooLarge) {
		t.Fatalf("expected ErrSessionTooLarge on Create, got: %v", err)
	}

	small := &gatesession.Record{LastUsedAt: time.Now()}
	if err := store.Create(ctx, small); err != nil {
		t.Fatalf("failed to create small session: %v", err)
	}
	small.Data = largeRecord().Data
	if err := store.Update(ctx, small); !errors.Is(err, ErrSessionTooLarge) {
		t.Errorf("expected ErrSessionTooLarge on Update, got: %v", err)
	}

	// The stored session is left as it was.
	got, err := store.Get(ctx, small.ID)
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if len(got.Data) != 0 {
		t.Errorf("expected unchanged empty data, got %d keys", len(got.Data))
	}
}

func TestMemcachedStore_MaxSessionBytes(t *testing.T) {
	store := memcachedOrSkip(t, MemcachedConfig{Retention: time.Hour, MaxSessionBytes: 500})

	if err := store.Create(context.Background(), largeRecord()); !errors.Is(err, ErrSessionTooLarge) {
		t.Errorf("expected ErrSessionTooLarge on Create, got: %v", err)
	}
}

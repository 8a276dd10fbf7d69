package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Morditux/gatesession"
)

// testBackend exercises the Backend contract shared by every implementation.
func testBackend(t *testing.T, store Backend) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	// Test Create
	rec := &gatesession.Record{LastUsedAt: now}
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if !ValidID(rec.ID) {
		t.Fatalf("expected a generated id, got %q", rec.ID)
	}

	// Test Get of a fresh session
	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if got == nil {
		t.Fatal("session not found")
	}
	if got.UserID != nil {
		t.Errorf("expected anonymous session, got user %d", *got.UserID)
	}
	if len(got.Data) != 0 {
		t.Errorf("expected empty data, got %v", got.Data)
	}
	if !got.LastUsedAt.Equal(now) {
		t.Errorf("expected last_used_at %v, got %v", now, got.LastUsedAt)
	}

	// Test Update replaces user and data
	userID := int64(7)
	later := now.Add(time.Minute)
	rec.UserID = &userID
	rec.LastUsedAt = later
	rec.Data = map[string]any{"redirect_to": "/lessons", "count": 42}
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("failed to update session: %v", err)
	}

	got, err = store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("failed to get updated session: %v", err)
	}
	if got.UserID == nil || *got.UserID != 7 {
		t.Errorf("expected user 7, got %v", got.UserID)
	}
	if got.Data["redirect_to"] != "/lessons" || got.Data["count"] != float64(42) {
		t.Errorf("unexpected values: %v", got.Data)
	}
	if !got.LastUsedAt.Equal(later) {
		t.Errorf("expected last_used_at %v, got %v", later, got.LastUsedAt)
	}

	// Data is replaced, not merged
	rec.Data = map[string]any{"other": true}
	rec.UserID = nil
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("failed to update session: %v", err)
	}
	got, err = store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if _, ok := got.Data["redirect_to"]; ok {
		t.Errorf("expected data to be replaced, got %v", got.Data)
	}
	if got.Data["other"] != true {
		t.Errorf("unexpected values: %v", got.Data)
	}
	if got.UserID != nil {
		t.Errorf("expected user to be cleared, got %d", *got.UserID)
	}

	// Test Update of an unknown session
	missing := &gatesession.Record{ID: "0123456789abcdef0123456789abcdef", LastUsedAt: now}
	if err := store.Update(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Test Get of an unknown session
	got, err = store.Get(ctx, missing.ID)
	if err != nil {
		t.Errorf("failed to get missing session: %v", err)
	}
	if got != nil {
		t.Error("expected missing session to be absent")
	}
}

// testBackendCleanup checks that Cleanup removes only abandoned sessions.
func testBackendCleanup(t *testing.T, store Backend) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	stale := &gatesession.Record{LastUsedAt: now.Add(-48 * time.Hour)}
	fresh := &gatesession.Record{LastUsedAt: now}
	for _, rec := range []*gatesession.Record{stale, fresh} {
		if err := store.Create(ctx, rec); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
	}

	n, err := store.Cleanup(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("failed cleanup: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 session cleaned up, got %d", n)
	}

	if got, _ := store.Get(ctx, stale.ID); got != nil {
		t.Error("expected stale session to be cleaned up")
	}
	if got, _ := store.Get(ctx, fresh.ID); got == nil {
		t.Error("expected fresh session to survive cleanup")
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()

	testBackend(t, store)
	testBackendCleanup(t, store)
}

func TestCodec(t *testing.T) {
	blob, err := encodeData(nil, 0)
	if err != nil || blob != nil {
		t.Fatalf("expected nil blob for empty data, got %q, %v", blob, err)
	}

	data, err := decodeData(nil, 0)
	if err != nil {
		t.Fatalf("failed to decode empty blob: %v", err)
	}
	if data == nil || len(data) != 0 {
		t.Errorf("expected empty map, got %v", data)
	}

	blob, err = encodeData(map[string]any{"nested": map[string]any{"a": []any{1, "x"}}}, 0)
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	data, err = decodeData(blob, 0)
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	nested, ok := data["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested map, got %T", data["nested"])
	}
	list, ok := nested["a"].([]any)
	if !ok || len(list) != 2 || list[0] != float64(1) || list[1] != "x" {
		t.Errorf("unexpected nested value: %v", nested["a"])
	}
}

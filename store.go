package gatesession

import (
	"context"
	"time"
)

// Store defines the operations the gateway performs against the remote session store.
// Implementations classify failures as *StoreError values carrying ErrStoreUnavailable,
// ErrNotFound or ErrStoreRejected.
type Store interface {
	// Fetch retrieves a session by its ID.
	Fetch(ctx context.Context, id string) (Record, error)
	// Create asks the store for a new session last used at the given time.
	// The store assigns the ID.
	Create(ctx context.Context, at time.Time) (Record, error)
	// Update overwrites user id, last use and data of an existing session.
	Update(ctx context.Context, rec Record) error
}

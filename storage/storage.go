// Package storage provides the persistence backends of the session service.
//
// Backends hold gatesession.Record values keyed by a store-assigned id. They
// never expire records on read: expiry is the gateway's decision. Backends with
// native TTLs (Memcached, Redis) let records lapse after a retention period;
// SQL backends rely on Cleanup.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Morditux/gatesession"
)

var (
	// ErrNotFound is returned by Update when no record exists for the id.
	ErrNotFound = errors.New("session not found")

	// ErrSessionTooLarge is returned when the encoded session data exceeds the configured MaxSessionBytes.
	ErrSessionTooLarge = errors.New("session data too large")

	// ErrDuplicateID is returned by Create when the generated id is already taken.
	ErrDuplicateID = errors.New("session id already exists")
)

// Backend defines the interface for session persistence.
type Backend interface {
	// Get retrieves a session by its ID. It returns nil, nil when the session does not exist.
	Get(ctx context.Context, id string) (*gatesession.Record, error)
	// Create stores a new session and assigns rec.ID.
	Create(ctx context.Context, rec *gatesession.Record) error
	// Update overwrites user id, last use and data of an existing session.
	Update(ctx context.Context, rec *gatesession.Record) error
	// Cleanup removes sessions last used before the given time and reports how many.
	Cleanup(ctx context.Context, before time.Time) (int64, error)
	// Close closes the backend.
	Close() error
}

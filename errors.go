package gatesession

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable is returned when the session store could not be reached
	// (timeout, DNS failure, connection refused).
	ErrStoreUnavailable = errors.New("session store unavailable")

	// ErrNotFound is returned when the store is reachable but has no record for the id.
	ErrNotFound = errors.New("session not found")

	// ErrExpired is returned when a record was found but its last use is past the expiry window.
	ErrExpired = errors.New("session expired")

	// ErrStoreRejected is returned when the store answered a create or update with an error status.
	ErrStoreRejected = errors.New("session store rejected request")
)

// StoreError describes a failed session store operation.
// Kind is one of the sentinel errors above; Err is the underlying cause, if any.
type StoreError struct {
	Op     string
	ID     string
	Status int
	Kind   error
	Err    error
}

func (e *StoreError) Error() string {
	msg := "session store " + e.Op
	if e.ID != "" {
		msg += " " + e.ID
	}
	msg += ": " + e.Kind.Error()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StoreError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// errorKind reports which sentinel an error carries, for logs and metrics.
func errorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrStoreUnavailable):
		return "unavailable"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrStoreRejected):
		return "rejected"
	default:
		return "error"
	}
}

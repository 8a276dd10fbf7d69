package gatesession

import (
	"maps"
	"time"
)

// Record is the persisted form of a session as held by the session store.
// It carries no behaviour; all I/O goes through a Store.
type Record struct {
	ID         string
	UserID     *int64
	LastUsedAt time.Time
	Data       map[string]any
}

// Expired reports whether the record's last use lies beyond window at now.
// A record exactly window old is still usable.
func (r Record) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(r.LastUsedAt) > window
}

// Session is the per-request view of a session. It is either an *ActiveSession,
// backed by a store record, or a *DegradedSession, used when the store could not
// provide one. Callers that care about the difference type-switch on it.
//
// Sessions are owned by a single request and are not safe for concurrent use.
type Session interface {
	// Values returns the request context bag backed by the session data.
	Values() Values
	// UserID returns the signed-in principal, if any.
	UserID() (int64, bool)
	SetUserID(id int64)
	ClearUserID()

	session()
}

type state struct {
	userID *int64
	values Values
}

func (s *state) Values() Values { return s.values }

func (s *state) UserID() (int64, bool) {
	if s.userID == nil {
		return 0, false
	}
	return *s.userID, true
}

func (s *state) SetUserID(id int64) { s.userID = &id }

func (s *state) ClearUserID() { s.userID = nil }

// ActiveSession is a session backed by a record in the session store.
type ActiveSession struct {
	id         string
	lastUsedAt time.Time
	state
}

func (*ActiveSession) session() {}

// NewActiveSession builds an active session from a store record.
// The record's data is copied; later changes to rec do not leak into the session.
func NewActiveSession(rec Record) *ActiveSession {
	values := make(Values, len(rec.Data))
	maps.Copy(values, rec.Data)

	s := &ActiveSession{
		id:         rec.ID,
		lastUsedAt: rec.LastUsedAt,
		state:      state{values: values},
	}
	if rec.UserID != nil {
		s.SetUserID(*rec.UserID)
	}
	return s
}

// ID returns the store-assigned identifier. It never changes.
func (s *ActiveSession) ID() string { return s.id }

// LastUsedAt returns the time of the last successful persistence.
func (s *ActiveSession) LastUsedAt() time.Time { return s.lastUsedAt }

// Record returns a snapshot of the session suitable for an update at the given time.
func (s *ActiveSession) Record(at time.Time) Record {
	rec := Record{
		ID:         s.id,
		LastUsedAt: at,
		Data:       make(map[string]any, len(s.values)),
	}
	if id, ok := s.UserID(); ok {
		rec.UserID = &id
	}
	maps.Copy(rec.Data, s.values)
	return rec
}

// DegradedSession is an ephemeral, anonymous session that is never persisted
// and never issues a cookie.
type DegradedSession struct {
	state
}

func (*DegradedSession) session() {}

// NewDegradedSession returns an empty anonymous session with no id.
func NewDegradedSession() *DegradedSession {
	return &DegradedSession{state: state{values: make(Values)}}
}

package gatesession

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MockStore is an in-memory Store. Records go through the wire encoding so
// values read back have the types a remote store would return.
type MockStore struct {
	mu      sync.Mutex
	records map[string]Record
	ids     []string // ids handed out by Create, in order
	seq     int

	FetchErr  error
	CreateErr error
	UpdateErr error

	Fetches int
	Creates int
	Updates int
}

func NewMockStore() *MockStore {
	return &MockStore{records: make(map[string]Record)}
}

// Put stores rec as if the store already held it.
func (m *MockStore) Put(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = roundTrip(rec)
}

// Get returns the stored record for id.
func (m *MockStore) Get(id string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	return rec, ok
}

// NextIDs queues the ids that Create assigns.
func (m *MockStore) NextIDs(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, ids...)
}

func (m *MockStore) Fetch(ctx context.Context, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fetches++
	if m.FetchErr != nil {
		return Record{}, m.FetchErr
	}
	rec, ok := m.records[id]
	if !ok {
		return Record{}, &StoreError{Op: "fetch", ID: id, Status: 404, Kind: ErrNotFound}
	}
	return roundTrip(rec), nil
}

func (m *MockStore) Create(ctx context.Context, at time.Time) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Creates++
	if m.CreateErr != nil {
		return Record{}, m.CreateErr
	}

	var id string
	if len(m.ids) > 0 {
		id, m.ids = m.ids[0], m.ids[1:]
	} else {
		m.seq++
		id = fmt.Sprintf("sess-%d", m.seq)
	}
	rec := roundTrip(Record{ID: id, LastUsedAt: at})
	m.records[id] = rec
	return rec, nil
}

func (m *MockStore) Update(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Updates++
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	if _, ok := m.records[rec.ID]; !ok {
		return &StoreError{Op: "update", ID: rec.ID, Status: 404, Kind: ErrStoreRejected}
	}
	m.records[rec.ID] = roundTrip(rec)
	return nil
}

func roundTrip(rec Record) Record {
	b, err := json.Marshal(rec)
	if err != nil {
		panic(err)
	}
	var out Record
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return out
}

// fixedClock returns a clock frozen at t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

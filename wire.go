package gatesession

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"
)

// TimeLayout is the timestamp format written to the session store.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Stores written against naive ISO-8601 timestamps are read as UTC.
var parseLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// FormatTime renders t in the store's timestamp format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a store timestamp.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// DataItem is one key/value entry of a record's data on the wire.
type DataItem struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// wireID accepts identifiers encoded either as JSON strings or numbers.
type wireID string

func (id *wireID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = wireID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("session id: %w", err)
		}
		*id = wireID(n.String())
	}
	return nil
}

type wireRecord struct {
	ID         wireID     `json:"id,omitempty"`
	UserID     *int64     `json:"user_id"`
	LastUsedAt string     `json:"last_used_at,omitempty"`
	DataItems  []DataItem `json:"data_items"`
}

// MarshalJSON encodes the record in the session store wire format.
// Data items are emitted in key order.
func (r Record) MarshalJSON() ([]byte, error) {
	w := wireRecord{
		ID:        wireID(r.ID),
		UserID:    r.UserID,
		DataItems: make([]DataItem, 0, len(r.Data)),
	}
	if !r.LastUsedAt.IsZero() {
		w.LastUsedAt = FormatTime(r.LastUsedAt)
	}
	for _, key := range slices.Sorted(maps.Keys(r.Data)) {
		w.DataItems = append(w.DataItems, DataItem{Key: key, Value: r.Data[key]})
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the session store wire format. Duplicate keys in
// data_items resolve to the last occurrence.
func (r *Record) UnmarshalJSON(b []byte) error {
	var w wireRecord
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	rec := Record{
		ID:     string(w.ID),
		UserID: w.UserID,
		Data:   make(map[string]any, len(w.DataItems)),
	}
	if w.LastUsedAt != "" {
		t, err := ParseTime(w.LastUsedAt)
		if err != nil {
			return fmt.Errorf("last_used_at: %w", err)
		}
		rec.LastUsedAt = t
	}
	for _, item := range w.DataItems {
		rec.Data[item.Key] = item.Value
	}

	*r = rec
	return nil
}

// createRequest is the body of a session creation call.
type createRequest struct {
	LastUsedAt string `json:"last_used_at"`
}

// CreateRequestBody returns the JSON body for creating a session at t.
func CreateRequestBody(t time.Time) ([]byte, error) {
	return json.Marshal(createRequest{LastUsedAt: FormatTime(t)})
}

// ParseCreateRequest decodes a creation body; a missing timestamp yields the zero time.
func ParseCreateRequest(b []byte) (time.Time, error) {
	var req createRequest
	if err := json.Unmarshal(b, &req); err != nil {
		return time.Time{}, err
	}
	if req.LastUsedAt == "" {
		return time.Time{}, nil
	}
	return ParseTime(req.LastUsedAt)
}

package gatesession

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseBytes bounds how much of a store response is read.
const maxResponseBytes = 1 << 20

// HTTPStore implements Store against a JSON-over-HTTP session resource collection:
//
//	GET   {base}/{id}
//	POST  {base}        {"last_used_at": ...}
//	PATCH {base}/{id}   {"user_id": ..., "last_used_at": ..., "data_items": [...]}
type HTTPStore struct {
	base    string
	client  *http.Client
	timeout time.Duration
	retries int
	backoff backoff
	metrics *Metrics
}

// HTTPStoreConfig holds configuration for the HTTP session store client.
type HTTPStoreConfig struct {
	// BaseURL of the session collection, e.g. http://sessions.internal/api/sessions.
	BaseURL string
	// Timeout bounds every store call including retries. Defaults to 2 seconds.
	Timeout time.Duration
	// Attempts is the number of tries for idempotent calls (fetch, update)
	// on transport failure. Defaults to 2. Create is always tried once.
	Attempts       int
	RetryBaseDelay time.Duration // Defaults to 50ms.
	RetryMaxDelay  time.Duration // Defaults to 500ms.
	// Client is used for requests. Defaults to a client with Timeout set.
	Client  *http.Client
	Metrics *Metrics
}

// NewHTTPStore creates a new HTTPStore.
func NewHTTPStore(cfg HTTPStoreConfig) (*HTTPStore, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid session store url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid session store url %q: scheme must be http or https", cfg.BaseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid session store url %q: missing host", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 2
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 50 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 500 * time.Millisecond
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}

	return &HTTPStore{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		client:  cfg.Client,
		timeout: cfg.Timeout,
		retries: cfg.Attempts,
		backoff: backoff{base: cfg.RetryBaseDelay, max: cfg.RetryMaxDelay},
		metrics: cfg.Metrics,
	}, nil
}

// Fetch retrieves a session. Any non-2xx answer is reported as ErrNotFound.
func (s *HTTPStore) Fetch(ctx context.Context, id string) (rec Record, err error) {
	start := time.Now()
	defer func() { s.metrics.observeStore("fetch", start, err) }()

	status, body, err := s.do(ctx, http.MethodGet, s.itemURL(id), nil, true)
	if err != nil {
		return Record{}, &StoreError{Op: "fetch", ID: id, Kind: ErrStoreUnavailable, Err: err}
	}
	if !success(status) {
		return Record{}, &StoreError{Op: "fetch", ID: id, Status: status, Kind: ErrNotFound}
	}
	if err := json.Unmarshal(body, &rec); err != nil {
		return Record{}, &StoreError{Op: "fetch", ID: id, Status: status, Kind: ErrStoreRejected, Err: err}
	}
	if rec.ID == "" {
		rec.ID = id
	}
	return rec, nil
}

// Create mints a new session record. It is never retried.
func (s *HTTPStore) Create(ctx context.Context, at time.Time) (rec Record, err error) {
	start := time.Now()
	defer func() { s.metrics.observeStore("create", start, err) }()

	payload, err := CreateRequestBody(at)
	if err != nil {
		return Record{}, &StoreError{Op: "create", Kind: ErrStoreRejected, Err: err}
	}

	status, body, err := s.do(ctx, http.MethodPost, s.base, payload, false)
	if err != nil {
		return Record{}, &StoreError{Op: "create", Kind: ErrStoreUnavailable, Err: err}
	}
	if !success(status) {
		return Record{}, &StoreError{Op: "create", Status: status, Kind: ErrStoreRejected}
	}
	if err := json.Unmarshal(body, &rec); err != nil {
		return Record{}, &StoreError{Op: "create", Status: status, Kind: ErrStoreRejected, Err: err}
	}
	if rec.ID == "" {
		return Record{}, &StoreError{Op: "create", Status: status, Kind: ErrStoreRejected, Err: errors.New("store did not assign an id")}
	}
	if rec.LastUsedAt.IsZero() {
		rec.LastUsedAt = at
	}
	return rec, nil
}

// Update overwrites an existing session. Any non-2xx answer is reported as ErrStoreRejected.
func (s *HTTPStore) Update(ctx context.Context, rec Record) (err error) {
	start := time.Now()
	defer func() { s.metrics.observeStore("update", start, err) }()

	id := rec.ID
	if id == "" {
		return &StoreError{Op: "update", Kind: ErrStoreRejected, Err: errors.New("record has no id")}
	}

	buf := getBuffer()
	defer PutBuffer(buf)

	// The id travels in the URL only.
	rec.ID = ""
	if err := json.NewEncoder(buf).Encode(rec); err != nil {
		return &StoreError{Op: "update", ID: id, Kind: ErrStoreRejected, Err: err}
	}

	status, _, err := s.do(ctx, http.MethodPatch, s.itemURL(id), buf.Bytes(), true)
	if err != nil {
		return &StoreError{Op: "update", ID: id, Kind: ErrStoreUnavailable, Err: err}
	}
	if !success(status) {
		return &StoreError{Op: "update", ID: id, Status: status, Kind: ErrStoreRejected}
	}
	return nil
}

func (s *HTTPStore) itemURL(id string) string {
	return s.base + "/" + url.PathEscape(id)
}

// do performs a request bounded by the store timeout. Transport failures of
// idempotent requests are retried with backoff while the budget allows.
// A returned error always means the store could not be reached.
func (s *HTTPStore) do(ctx context.Context, method, target string, payload []byte, idempotent bool) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	attempts := 1
	if idempotent {
		attempts = s.retries
	}

	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			if err := sleepWithContext(ctx, s.backoff.delay(attempt-1)); err != nil {
				return 0, nil, errors.Join(lastErr, err)
			}
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return resp.StatusCode, data, nil
	}
	return 0, nil, lastErr
}

func success(status int) bool {
	return status >= 200 && status < 300
}

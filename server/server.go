// Package server implements sessiond, the REST session service consumed by
// gatesession.HTTPStore, on top of a pluggable storage.Backend.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Morditux/gatesession"
	"github.com/Morditux/gatesession/storage"
)

const (
	maxRequestBytes = 1 << 20
	createAttempts  = 3
)

// Config holds configuration for the session service.
type Config struct {
	// BasePath is the collection path. Defaults to /api/sessions.
	BasePath string
	// Retention is how long an unused session is kept before cleanup. Defaults to 24 hours.
	Retention time.Duration
	// CleanupInterval is the period of the cleanup worker. Defaults to 10 minutes.
	CleanupInterval time.Duration
	Logger          *slog.Logger
	Metrics         *Metrics
	// Now replaces the clock, for tests.
	Now func() time.Time
}

// Server serves the session collection and removes abandoned sessions in the background.
type Server struct {
	backend   storage.Backend
	base      string
	retention time.Duration
	cleanup   time.Duration
	logger    *slog.Logger
	metrics   *Metrics
	now       func() time.Time
	mux       *http.ServeMux

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Server and starts its cleanup worker. Close stops it.
func New(backend storage.Backend, cfg Config) *Server {
	if cfg.BasePath == "" {
		cfg.BasePath = "/api/sessions"
	}
	if cfg.Retention == 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Server{
		backend:   backend,
		base:      "/" + strings.Trim(cfg.BasePath, "/"),
		retention: cfg.Retention,
		cleanup:   cfg.CleanupInterval,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		now:       cfg.Now,
		mux:       http.NewServeMux(),
		stopChan:  make(chan struct{}),
	}

	s.mux.HandleFunc("POST "+s.base, s.handleCreate)
	s.mux.HandleFunc("GET "+s.base+"/{id}", s.handleGet)
	s.mux.HandleFunc("PATCH "+s.base+"/{id}", s.handleUpdate)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.wg.Add(1)
	go s.cleanupWorker()

	return s
}

// Handle mounts an additional handler, such as /metrics, on the service mux.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) cleanupWorker() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Cleanup()
		case <-s.stopChan:
			return
		}
	}
}

// Cleanup removes sessions unused for longer than the retention period.
func (s *Server) Cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.backend.Cleanup(ctx, s.now().Add(-s.retention))
	if err != nil {
		s.logger.Warn("session cleanup failed", "error", err)
		return
	}
	s.metrics.cleaned(n)
	if n > 0 {
		s.logger.Debug("abandoned sessions removed", "count", n)
	}
}

// Close stops the cleanup worker and closes the backend.
func (s *Server) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return s.backend.Close()
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	at := s.now()
	if len(body) > 0 {
		t, err := gatesession.ParseCreateRequest(body)
		if err != nil {
			s.writeError(w, r, "create", http.StatusBadRequest, err)
			return
		}
		if !t.IsZero() {
			at = t
		}
	}

	rec := &gatesession.Record{LastUsedAt: at.UTC()}
	var err error
	for range createAttempts {
		if err = s.backend.Create(r.Context(), rec); !errors.Is(err, storage.ErrDuplicateID) {
			break
		}
	}
	if err != nil {
		s.writeError(w, r, "create", statusFor(err), err)
		return
	}

	s.metrics.request("create", http.StatusCreated)
	writeRecord(w, http.StatusCreated, rec)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !storage.ValidID(id) {
		s.writeError(w, r, "get", http.StatusNotFound, storage.ErrNotFound)
		return
	}

	rec, err := s.backend.Get(r.Context(), id)
	if err == nil && rec == nil {
		err = storage.ErrNotFound
	}
	if err != nil {
		s.writeError(w, r, "get", statusFor(err), err)
		return
	}

	s.metrics.request("get", http.StatusOK)
	writeRecord(w, http.StatusOK, rec)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !storage.ValidID(id) {
		s.writeError(w, r, "update", http.StatusNotFound, storage.ErrNotFound)
		return
	}

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	var rec gatesession.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		s.writeError(w, r, "update", http.StatusBadRequest, err)
		return
	}
	if rec.ID != "" && rec.ID != id {
		s.writeError(w, r, "update", http.StatusBadRequest, errors.New("id does not match path"))
		return
	}
	rec.ID = id
	if rec.LastUsedAt.IsZero() {
		rec.LastUsedAt = s.now()
	}
	rec.LastUsedAt = rec.LastUsedAt.UTC()

	if err := s.backend.Update(r.Context(), &rec); err != nil {
		s.writeError(w, r, "update", statusFor(err), err)
		return
	}

	s.metrics.request("update", http.StatusOK)
	writeRecord(w, http.StatusOK, &rec)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"status":"ok"}`)
}

// readBody reads a bounded request body, answering 413 when it is too large.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, "read", http.StatusRequestEntityTooLarge, err)
		} else {
			s.writeError(w, r, "read", http.StatusBadRequest, err)
		}
		return nil, false
	}
	return body, true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, status int, err error) {
	s.metrics.request(op, status)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "session request failed", "op", op, "status", status, "error", err)
	} else {
		s.logger.DebugContext(r.Context(), "session request refused", "op", op, "status", status, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": http.StatusText(status)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrSessionTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, storage.ErrRedisUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeRecord(w http.ResponseWriter, status int, rec *gatesession.Record) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rec)
}

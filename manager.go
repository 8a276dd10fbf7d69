package gatesession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// maxCookieLength bounds cookie values forwarded to the store.
// Longer values are treated as absent instead of reaching the backend.
const maxCookieLength = 256

// ErrNilSession is returned by Save when no session is given.
var ErrNilSession = errors.New("nil session")

type Manager struct {
	store        Store
	expiresAfter time.Duration
	cookie       string
	cookiePath   string
	cookieDomain string
	httpOnly     bool
	secure       *bool
	sameSite     http.SameSite
	logger       *slog.Logger
	metrics      *Metrics
	now          func() time.Time
}

type Config struct {
	Store Store
	// ExpiresAfter is the maximum age of a session's last use. Defaults to 1 hour.
	ExpiresAfter time.Duration
	CookieName   string
	CookiePath   string
	CookieDomain string
	HttpOnly     *bool
	Secure       *bool
	SameSite     http.SameSite
	Logger       *slog.Logger
	Metrics      *Metrics
	// Now replaces the clock, for tests.
	Now func() time.Time
}

func NewManager(cfg Config) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = "session_id"
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}
	if cfg.ExpiresAfter == 0 {
		cfg.ExpiresAfter = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Manager{
		store:        cfg.Store,
		expiresAfter: cfg.ExpiresAfter,
		cookie:       cfg.CookieName,
		cookiePath:   cfg.CookiePath,
		cookieDomain: cfg.CookieDomain,
		httpOnly:     true, // Default
		secure:       cfg.Secure,
		sameSite:     http.SameSiteLaxMode, // Default
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		now:          cfg.Now,
	}

	if cfg.HttpOnly != nil {
		m.httpOnly = *cfg.HttpOnly
	}

	if cfg.SameSite != 0 {
		m.sameSite = cfg.SameSite
	}

	// Browsers reject SameSite=None cookies without the Secure attribute.
	if m.sameSite == http.SameSiteNoneMode {
		secure := true
		m.secure = &secure
	}

	return m
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string { return m.cookie }

// Open resolves the session of an incoming request from its cookie.
// It never fails: when the store cannot provide a session the result is a *DegradedSession.
func (m *Manager) Open(r *http.Request) Session {
	var value string
	if c, err := r.Cookie(m.cookie); err == nil {
		value = c.Value
	}
	return m.Resolve(context.WithoutCancel(r.Context()), value)
}

// Resolve reuses the session named by cookie if the store still holds it and it
// has not expired; otherwise it mints a new one. If the store is unreachable, or
// refuses to create a session, the result is a *DegradedSession.
func (m *Manager) Resolve(ctx context.Context, cookie string) Session {
	now := m.now()

	if cookie != "" && len(cookie) <= maxCookieLength {
		rec, err := m.store.Fetch(ctx, cookie)
		switch {
		case err == nil && !rec.Expired(now, m.expiresAfter):
			m.metrics.resolved("reused")
			return NewActiveSession(rec)
		case err == nil:
			err = fmt.Errorf("%w: last used %s", ErrExpired, rec.LastUsedAt.Format(time.RFC3339))
			m.logger.DebugContext(ctx, "session discarded", "session_id", cookie, "error", err)
		case errors.Is(err, ErrStoreUnavailable):
			m.logger.WarnContext(ctx, "session store unavailable, using degraded session", "op", "fetch", "error", err)
			m.metrics.resolved("degraded")
			return NewDegradedSession()
		default:
			m.logger.DebugContext(ctx, "session discarded", "session_id", cookie, "error", err)
		}
	}

	rec, err := m.store.Create(ctx, now)
	if err != nil {
		m.logger.WarnContext(ctx, "session creation failed, using degraded session", "reason", errorKind(err), "error", err)
		m.metrics.resolved("degraded")
		return NewDegradedSession()
	}

	m.metrics.resolved("minted")
	return NewActiveSession(rec)
}

// Save persists s and adjusts the session cookie on w. It must be called before
// the response header is written.
//
// A degraded session clears the cookie and never reaches the store. An active
// session is written back; on success the cookie is set to its id, on failure
// the response is left untouched and the error is returned for the caller to
// observe. Save failures must not fail the request.
func (m *Manager) Save(w http.ResponseWriter, r *http.Request, s Session) error {
	ctx := context.WithoutCancel(r.Context())

	switch s := s.(type) {
	case *DegradedSession:
		m.clearCookie(w, r)
		m.metrics.persisted("degraded")
		return nil

	case *ActiveSession:
		now := m.now()
		if err := m.store.Update(ctx, s.Record(now)); err != nil {
			m.logger.WarnContext(ctx, "session not persisted", "session_id", s.id, "reason", errorKind(err), "error", err)
			m.metrics.persisted("failed")
			return err
		}
		s.lastUsedAt = now
		m.setCookie(w, r, s.id)
		m.metrics.persisted("saved")
		return nil
	}

	return ErrNilSession
}

// Renew moves an active session to a freshly minted store record, carrying over
// its user and data, so that an identifier known before sign-in stops granting it.
// The old record is abandoned. If no new record can be created, s is returned as is.
func (m *Manager) Renew(ctx context.Context, s Session) Session {
	active, ok := s.(*ActiveSession)
	if !ok {
		return s
	}

	rec, err := m.store.Create(ctx, m.now())
	if err != nil {
		m.logger.WarnContext(ctx, "session renewal failed", "session_id", active.id, "reason", errorKind(err), "error", err)
		return s
	}

	renewed := NewActiveSession(rec)
	renewed.userID = active.userID
	renewed.values = active.values
	return renewed
}

// HandlerFunc handles a request within a session. It returns the session to
// persist, normally s itself, or the result of Manager.Renew. A nil result
// persists s.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, s Session) Session

// Handle wraps h in the open/save cycle. The handler's response is buffered so
// that the session cookie can be set once the handler returns. Flushing commits
// the response early; the session is saved at that point as well.
func (m *Manager) Handle(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := m.Open(r)

		bw := newBufferedWriter(w)
		defer bw.release()
		bw.beforeCommit = func() { _ = m.Save(w, r, s) }

		if out := h(bw, r, s); out != nil {
			s = out
		}

		if bw.committed {
			// Headers are gone; only the store still sees the latest state.
			_ = m.Save(w, r, s)
			return
		}
		bw.commit()
	})
}

func (m *Manager) isSecure(r *http.Request) bool {
	if m.secure != nil {
		return *m.secure
	}
	return r.TLS != nil
}

func (m *Manager) setCookie(w http.ResponseWriter, r *http.Request, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie,
		Value:    id,
		Path:     m.cookiePath,
		Domain:   m.cookieDomain,
		HttpOnly: m.httpOnly,
		Secure:   m.isSecure(r),
		SameSite: m.sameSite,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie,
		Value:    "",
		Path:     m.cookiePath,
		Domain:   m.cookieDomain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: m.httpOnly,
		Secure:   m.isSecure(r),
		SameSite: m.sameSite,
	})
}

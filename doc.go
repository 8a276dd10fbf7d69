/*
Package gatesession binds HTTP requests to server-side sessions held by a remote session store.

Every request goes through a two-phase cycle. The Manager resolves the request's session_id cookie
against the store (reusing a live session, or minting a new one when the cookie is missing, unknown
or expired), hands the resulting Session to the handler as an explicit argument, and writes the
session back once the handler is done, setting the cookie to the session's id.

Key Features:

  - Remote Storage: HTTPStore speaks the JSON session resource contract (GET/POST/PATCH) with
    bounded timeouts and retry with backoff for idempotent calls.
  - Fail Open: when the store is unreachable the request gets a DegradedSession, which is
    anonymous and never persisted. Its response clears any stale session cookie. Failed saves
    leave the response untouched and are only logged and counted.
  - Expiry: sessions unused for longer than the configured window (1 hour by default) are abandoned.
  - Typed Errors: store failures are *StoreError values matching ErrStoreUnavailable, ErrNotFound,
    ErrExpired or ErrStoreRejected with errors.Is.
  - Metrics: optional Prometheus counters for resolve and persist outcomes and store latency.

Usage:

	store, err := gatesession.NewHTTPStore(gatesession.HTTPStoreConfig{
		BaseURL: "http://sessions.internal/api/sessions",
		Timeout: 2 * time.Second,
	})
	if err != nil {
		log.Fatal(err)
	}

	mgr := gatesession.NewManager(gatesession.Config{
		Store:        store,
		ExpiresAfter: time.Hour,
	})

	http.Handle("/sign_in", mgr.Handle(func(w http.ResponseWriter, r *http.Request, s gatesession.Session) gatesession.Session {
		s.SetUserID(42)
		target, _ := s.Values().Pop("redirect_to", "/me").(string)
		http.Redirect(w, r, target, http.StatusSeeOther)
		return mgr.Renew(r.Context(), s)
	}))

Handlers that need to know whether the session will survive the request type-switch on it:

	switch s := s.(type) {
	case *gatesession.ActiveSession:
		log.Println("session", s.ID())
	case *gatesession.DegradedSession:
		log.Println("session store down, serving anonymously")
	}

Thread Safety:

The Manager and HTTPStore are safe for concurrent use by multiple goroutines.
Sessions are owned by a single request and are not thread-safe. Concurrent requests carrying the
same cookie each write their own copy back; the last write wins at the store.
*/
package gatesession

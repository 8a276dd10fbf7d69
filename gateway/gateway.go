// Package gateway is the user-facing web front of the tutoring application.
// Each request runs inside a session resolved by gatesession.Manager.
package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Morditux/gatesession"
)

const (
	redirectKey    = "redirect_to"
	defaultLanding = "/me"
)

// Config holds the dependencies of the gateway.
type Config struct {
	Sessions *gatesession.Manager
	Profiles Profiles
	Logger   *slog.Logger
}

// Gateway routes the web front's requests.
type Gateway struct {
	sessions *gatesession.Manager
	profiles Profiles
	logger   *slog.Logger
	handler  http.Handler
}

// New creates a Gateway.
func New(cfg Config) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	g := &Gateway{
		sessions: cfg.Sessions,
		profiles: cfg.Profiles,
		logger:   cfg.Logger,
	}

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", g.sessions.Handle(g.index))
	mux.Handle("GET /sign_in", g.sessions.Handle(g.signInForm))
	mux.Handle("POST /sign_in", g.sessions.Handle(g.signIn))
	mux.Handle("POST /sign_out", g.sessions.Handle(g.signOut))
	mux.Handle("GET /me", g.sessions.Handle(g.me))
	g.handler = RequestIDMiddleware(mux)

	return g
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.handler.ServeHTTP(w, r)
}

func (g *Gateway) index(w http.ResponseWriter, r *http.Request, s gatesession.Session) gatesession.Session {
	http.Redirect(w, r, defaultLanding, http.StatusFound)
	return s
}

func (g *Gateway) signInForm(w http.ResponseWriter, r *http.Request, s gatesession.Session) gatesession.Session {
	if target := r.URL.Query().Get(redirectKey); target != "" && isLocalPath(target) {
		s.Values().Set(redirectKey, target)
	}

	if _, ok := s.UserID(); ok {
		http.Redirect(w, r, defaultLanding, http.StatusFound)
		return s
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"form":   "sign_in",
		"fields": []string{"phone", "password"},
	})
	return s
}

func (g *Gateway) signIn(w http.ResponseWriter, r *http.Request, s gatesession.Session) gatesession.Session {
	phone := r.PostFormValue("phone")
	password := r.PostFormValue("password")
	if phone == "" || password == "" {
		writeError(w, http.StatusBadRequest, "phone and password are required")
		return s
	}

	profile, err := g.profiles.FindByCredentials(r.Context(), phone, HashPassword(password))
	if err != nil {
		g.profileError(w, r, err)
		return s
	}

	s.SetUserID(profile.ID)
	// A fresh identifier after sign-in so that one known beforehand grants nothing.
	s = g.sessions.Renew(r.Context(), s)

	http.Redirect(w, r, popRedirect(s), http.StatusSeeOther)
	return s
}

func (g *Gateway) signOut(w http.ResponseWriter, r *http.Request, s gatesession.Session) gatesession.Session {
	s.ClearUserID()
	http.Redirect(w, r, "/sign_in", http.StatusSeeOther)
	return s
}

func (g *Gateway) me(w http.ResponseWriter, r *http.Request, s gatesession.Session) gatesession.Session {
	userID, ok := s.UserID()
	if !ok {
		s.Values().Set(redirectKey, "/me")
		http.Redirect(w, r, "/sign_in", http.StatusFound)
		return s
	}

	profile, err := g.profiles.Get(r.Context(), userID)
	if err != nil {
		g.profileError(w, r, err)
		return s
	}

	writeJSON(w, http.StatusOK, profile)
	return s
}

func (g *Gateway) profileError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrProfilesUnavailable):
		g.logger.WarnContext(r.Context(), "profiles service unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "profiles service unavailable")
	case errors.Is(err, ErrProfileNotFound):
		if r.Method == http.MethodPost {
			writeError(w, http.StatusUnauthorized, "invalid phone or password")
			return
		}
		writeError(w, http.StatusNotFound, "profile not found")
	default:
		g.logger.ErrorContext(r.Context(), "profile lookup failed", "error", err)
		writeError(w, http.StatusBadGateway, "profiles service error")
	}
}

// popRedirect removes the stored post-sign-in target, falling back to the default landing page.
func popRedirect(s gatesession.Session) string {
	if target, ok := s.Values().Pop(redirectKey, defaultLanding).(string); ok && isLocalPath(target) {
		return target
	}
	return defaultLanding
}

// isLocalPath reports whether target stays on this site.
func isLocalPath(target string) bool {
	return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") && !strings.Contains(target, `\`)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

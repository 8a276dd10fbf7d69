package gatesession

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func savedCookie(t *testing.T, mgr *Manager, r *http.Request, s Session) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	if err := mgr.Save(w, r, s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("No cookie set")
	}
	return cookies[0]
}

func TestSecurityConfig(t *testing.T) {
	store := NewMockStore()

	t.Run("Default Security Settings", func(t *testing.T) {
		mgr := NewManager(Config{Store: store})
		s := mgr.Resolve(context.Background(), "")

		c := savedCookie(t, mgr, httptest.NewRequest("GET", "/", nil), s)
		if !c.HttpOnly {
			t.Error("HttpOnly should be true by default")
		}
		if c.SameSite != http.SameSiteLaxMode {
			t.Errorf("SameSite should be Lax by default, got %v", c.SameSite)
		}
		if c.Secure {
			t.Error("Secure should be false for non-TLS request by default")
		}
		if c.Path != "/" {
			t.Errorf("Path should be / by default, got %q", c.Path)
		}
	})

	t.Run("TLS Request Sets Secure", func(t *testing.T) {
		mgr := NewManager(Config{Store: store})
		s := mgr.Resolve(context.Background(), "")

		r := httptest.NewRequest("GET", "https://example.com/", nil)
		r.TLS = &tls.ConnectionState{}
		if c := savedCookie(t, mgr, r, s); !c.Secure {
			t.Error("Secure should follow the TLS state of the request")
		}
	})

	t.Run("Custom Security Settings", func(t *testing.T) {
		httpOnly := false
		secure := true
		mgr := NewManager(Config{
			Store:        store,
			HttpOnly:     &httpOnly,
			Secure:       &secure,
			SameSite:     http.SameSiteStrictMode,
			CookieDomain: "tutor.example.com",
		})
		s := mgr.Resolve(context.Background(), "")

		c := savedCookie(t, mgr, httptest.NewRequest("GET", "/", nil), s) // Non-TLS request
		if c.HttpOnly {
			t.Error("HttpOnly should be false")
		}
		if c.SameSite != http.SameSiteStrictMode {
			t.Errorf("SameSite should be Strict, got %v", c.SameSite)
		}
		if !c.Secure {
			t.Error("Secure should be forced to true")
		}
		if c.Domain != "tutor.example.com" {
			t.Errorf("Domain should be set, got %q", c.Domain)
		}
	})

	t.Run("Clearing Respects Secure Setting", func(t *testing.T) {
		secure := true
		mgr := NewManager(Config{Store: store, Secure: &secure})

		c := savedCookie(t, mgr, httptest.NewRequest("GET", "/", nil), NewDegradedSession())
		if !c.Secure {
			t.Error("Clearing cookie should be Secure")
		}
		if !c.HttpOnly {
			t.Error("Clearing cookie should be HttpOnly")
		}
	})

	t.Run("SameSite None Forces Secure", func(t *testing.T) {
		secure := false
		mgr := NewManager(Config{Store: store, Secure: &secure, SameSite: http.SameSiteNoneMode})
		s := mgr.Resolve(context.Background(), "")

		c := savedCookie(t, mgr, httptest.NewRequest("GET", "/", nil), s)
		if !c.Secure {
			t.Error("SameSite=None cookies must be Secure")
		}
	})
}

package gatesession

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// TestConcurrentRequests drives many independent requests through one Manager.
// Each request owns its session, so no two requests may observe each other's data.
func TestConcurrentRequests(t *testing.T) {
	store := NewMockStore()
	mgr := NewManager(Config{Store: store, ExpiresAfter: time.Hour})

	h := mgr.Handle(func(w http.ResponseWriter, r *http.Request, s Session) Session {
		who := r.URL.Query().Get("who")
		if prev, ok := s.Values().String("who"); ok && prev != who {
			t.Errorf("request %s saw data of %s", who, prev)
		}
		s.Values().Set("who", who)
		fmt.Fprint(w, who)
		return s
	})

	const clients = 20
	const rounds = 10

	var wg sync.WaitGroup
	for i := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			who := fmt.Sprintf("client-%d", i)
			var cookie *http.Cookie
			for range rounds {
				req := httptest.NewRequest("GET", "/?who="+who, nil)
				if cookie != nil {
					req.AddCookie(cookie)
				}
				w := httptest.NewRecorder()
				h.ServeHTTP(w, req)

				if w.Body.String() != who {
					t.Errorf("unexpected body %q for %s", w.Body.String(), who)
					return
				}
				cookies := w.Result().Cookies()
				if len(cookies) != 1 {
					t.Errorf("expected a cookie for %s", who)
					return
				}
				if cookie != nil && cookies[0].Value != cookie.Value {
					t.Errorf("%s lost its session: %s -> %s", who, cookie.Value, cookies[0].Value)
					return
				}
				cookie = cookies[0]
			}
		}()
	}
	wg.Wait()

	if store.Creates != clients {
		t.Errorf("expected %d sessions created, got %d", clients, store.Creates)
	}
}

package gatesession

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	store := NewMockStore()
	mgr := NewManager(Config{Store: store, Metrics: metrics, Now: fixedClock(testNow)})
	ctx := context.Background()

	s := mgr.Resolve(ctx, "")
	s2 := mgr.Resolve(ctx, s.(*ActiveSession).ID())
	_ = mgr.Save(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil), s2)

	store.CreateErr = &StoreError{Op: "create", Kind: ErrStoreUnavailable}
	d := mgr.Resolve(ctx, "")
	_ = mgr.Save(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil), d)

	for outcome, want := range map[string]float64{"minted": 1, "reused": 1, "degraded": 1} {
		if got := testutil.ToFloat64(metrics.ResolveTotal.WithLabelValues(outcome)); got != want {
			t.Errorf("resolve %s = %v, want %v", outcome, got, want)
		}
	}
	for outcome, want := range map[string]float64{"saved": 1, "degraded": 1, "failed": 0} {
		if got := testutil.ToFloat64(metrics.PersistTotal.WithLabelValues(outcome)); got != want {
			t.Errorf("persist %s = %v, want %v", outcome, got, want)
		}
	}

	// A nil *Metrics records nothing and does not panic.
	var none *Metrics
	none.resolved("minted")
	none.persisted("saved")
	none.observeStore("fetch", testNow, errors.New("x"))
}

func TestErrorKind(t *testing.T) {
	tests := map[error]string{
		nil: "ok",
		&StoreError{Op: "fetch", Kind: ErrStoreUnavailable}: "unavailable",
		&StoreError{Op: "fetch", Kind: ErrNotFound}:         "not_found",
		&StoreError{Op: "update", Kind: ErrStoreRejected}:   "rejected",
		ErrExpired:            "expired",
		errors.New("strange"): "error",
	}
	for err, want := range tests {
		if got := errorKind(err); got != want {
			t.Errorf("errorKind(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestStoreErrorMessage(t *testing.T) {
	err := &StoreError{Op: "update", ID: "abc123", Status: 500, Kind: ErrStoreRejected, Err: errors.New("boom")}
	want := "session store update abc123: session store rejected request (status 500): boom"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrStoreRejected) {
		t.Error("expected the kind to be unwrapped")
	}
}

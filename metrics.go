package gatesession

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of the session subsystem.
// A nil *Metrics records nothing.
type Metrics struct {
	ResolveTotal  *prometheus.CounterVec
	PersistTotal  *prometheus.CounterVec
	StoreRequests *prometheus.CounterVec
	StoreDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ResolveTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gatesession",
				Name:      "resolve_total",
				Help:      "Sessions opened, by outcome",
			},
			[]string{"outcome"}, // reused/minted/degraded
		),
		PersistTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gatesession",
				Name:      "persist_total",
				Help:      "Session saves, by outcome",
			},
			[]string{"outcome"}, // saved/failed/degraded
		),
		StoreRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gatesession",
				Name:      "store_requests_total",
				Help:      "Session store calls, by operation and result",
			},
			[]string{"op", "result"},
		),
		StoreDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gatesession",
				Name:      "store_request_duration_seconds",
				Help:      "Session store call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}
}

func (m *Metrics) resolved(outcome string) {
	if m == nil {
		return
	}
	m.ResolveTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) persisted(outcome string) {
	if m == nil {
		return
	}
	m.PersistTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeStore(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.StoreRequests.WithLabelValues(op, errorKind(err)).Inc()
	m.StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

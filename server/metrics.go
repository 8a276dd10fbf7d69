package server

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of the session service.
// A nil *Metrics records nothing.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	SessionsCleaned prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sessiond",
				Name:      "requests_total",
				Help:      "Session service requests, by operation and status code",
			},
			[]string{"op", "code"},
		),
		SessionsCleaned: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "sessiond",
				Name:      "sessions_cleaned_total",
				Help:      "Abandoned sessions removed by the cleanup worker",
			},
		),
	}
}

func (m *Metrics) request(op string, status int) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(op, strconv.Itoa(status)).Inc()
}

func (m *Metrics) cleaned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsCleaned.Add(float64(n))
}

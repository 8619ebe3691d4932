// Package metrics holds the process-level HTTP instruments. Feature
// counters live next to their features.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP-level Prometheus instruments.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
}

// New creates and registers the HTTP metrics.
func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medchain_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// Observe records one request.
func (m *Metrics) Observe(method, route, status string, seconds float64) {
	if m != nil {
		m.RequestDuration.WithLabelValues(method, route, status).Observe(seconds)
	}
}

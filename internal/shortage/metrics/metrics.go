package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the shortage engine.
type Metrics struct {
	Predictions *prometheus.CounterVec
}

// New creates and registers the shortage metrics.
func New() *Metrics {
	return &Metrics{
		Predictions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "medchain_shortage_engine_predictions_total",
			Help: "Shortage predictions served, partitioned by severity",
		}, []string{"severity"}),
	}
}

// IncPredictions counts one served prediction at the given severity.
func (m *Metrics) IncPredictions(severity string) {
	if m != nil {
		m.Predictions.WithLabelValues(severity).Inc()
	}
}

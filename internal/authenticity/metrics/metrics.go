package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for image analysis.
type Metrics struct {
	Analyses *prometheus.CounterVec
}

// New creates and registers the authenticity metrics.
func New() *Metrics {
	return &Metrics{
		Analyses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "medchain_image_analyses_total",
			Help: "Image analyses performed, partitioned by verdict",
		}, []string{"verdict"}),
	}
}

// IncAnalyses counts one analysis outcome.
func (m *Metrics) IncAnalyses(authentic bool) {
	if m == nil {
		return
	}
	verdict := "fake"
	if authentic {
		verdict = "authentic"
	}
	m.Analyses.WithLabelValues(verdict).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus counters for ledger activity.
type Metrics struct {
	BatchesRegistered   prometheus.Counter
	Verifications       prometheus.Counter
	FakeReports         prometheus.Counter
	PredictionsRecorded prometheus.Counter
}

// New creates and registers the ledger metrics.
func New() *Metrics {
	return &Metrics{
		BatchesRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medchain_batches_registered_total",
			Help: "Total number of drug batches registered on the ledger",
		}),
		Verifications: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medchain_batch_verifications_total",
			Help: "Total number of successful batch verifications",
		}),
		FakeReports: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medchain_fake_reports_total",
			Help: "Total number of fake drug reports accepted",
		}),
		PredictionsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medchain_shortage_predictions_total",
			Help: "Total number of shortage predictions recorded",
		}),
	}
}

// IncBatchesRegistered increments the registered-batch counter.
func (m *Metrics) IncBatchesRegistered() {
	if m != nil {
		m.BatchesRegistered.Inc()
	}
}

// IncVerifications increments the verification counter.
func (m *Metrics) IncVerifications() {
	if m != nil {
		m.Verifications.Inc()
	}
}

// IncFakeReports increments the fake-report counter.
func (m *Metrics) IncFakeReports() {
	if m != nil {
		m.FakeReports.Inc()
	}
}

// IncPredictionsRecorded increments the prediction counter.
func (m *Metrics) IncPredictionsRecorded() {
	if m != nil {
		m.PredictionsRecorded.Inc()
	}
}

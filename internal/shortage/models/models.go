// Package models defines the shortage engine's request and prediction shapes.
package models

import "time"

// Severity classifies a shortage prediction.
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Request is a shortage evaluation request for one drug at one location.
type Request struct {
	DrugName      string  `json:"drug_name"`
	Location      string  `json:"location"`
	CurrentStock  float64 `json:"current_stock"`
	AvgDailyUsage float64 `json:"avg_daily_usage"`
}

// Prediction is the scored verdict for a shortage request.
// PredictedShortageDate is nil when the probability does not cross 0.5.
type Prediction struct {
	DrugName              string     `json:"drug_name"`
	Location              string     `json:"location"`
	ShortageProbability   float64    `json:"shortage_probability"`
	PredictedShortageDate *time.Time `json:"predicted_shortage_date"`
	Confidence            float64    `json:"confidence"`
	RecommendedAction     string     `json:"recommended_action"`
	Severity              Severity   `json:"severity"`
	UnitsNeeded           uint64     `json:"units_needed"`
}

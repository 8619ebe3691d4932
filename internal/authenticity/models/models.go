// Package models defines the authenticity engine's verdict shapes.
package models

import "time"

// RiskLevel buckets the anomaly score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Analysis carries the raw image statistics behind a verdict. Brightness is
// normalized to [0,1]; the remaining measures are on the 0-255 pixel scale.
type Analysis struct {
	Brightness    float64  `json:"brightness"`
	Sharpness     float64  `json:"sharpness"`
	ColorVariance float64  `json:"color_variance"`
	EdgeDensity   float64  `json:"edge_density"`
	Flags         []string `json:"flags"`
}

// BatchInfo is synthesized provenance metadata attached to authentic
// verdicts, standing in for a manufacturer-registry lookup.
type BatchInfo struct {
	BatchID         string    `json:"batch_id"`
	Manufacturer    string    `json:"manufacturer"`
	ManufactureDate time.Time `json:"manufacture_date"`
	ExpiryDate      time.Time `json:"expiry_date"`
}

// Verdict is the scored outcome of an image analysis. BatchInfo is nil when
// the image is judged inauthentic.
type Verdict struct {
	IsAuthentic  bool       `json:"is_authentic"`
	Confidence   float64    `json:"confidence"`
	AnomalyScore float64    `json:"anomaly_score"`
	RiskLevel    RiskLevel  `json:"risk_level"`
	Analysis     Analysis   `json:"analysis"`
	BatchInfo    *BatchInfo `json:"batch_info"`
}

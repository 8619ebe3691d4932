package handler

import (
	"time"

	"medchain/internal/registry/models"
)

// BatchResponse is the wire shape for batch records.
type BatchResponse struct {
	Hash          string    `json:"hash"`
	Issuer        string    `json:"issuer"`
	RegisteredAt  time.Time `json:"registered_at"`
	BatchID       string    `json:"batch_id"`
	Valid         bool      `json:"valid"`
	Verifications uint64    `json:"verifications"`
}

// FromBatch converts a domain record to its wire shape.
func FromBatch(batch models.DrugBatch) BatchResponse {
	return BatchResponse{
		Hash:          batch.Hash.String(),
		Issuer:        batch.Issuer.String(),
		RegisteredAt:  batch.RegisteredAt,
		BatchID:       batch.BatchID,
		Valid:         batch.Valid,
		Verifications: batch.Verifications,
	}
}

// VerifyResponse reports the outcome of a verification call. Exists is false
// when no record was ever registered at the hash.
type VerifyResponse struct {
	IsAuthentic bool           `json:"is_authentic"`
	Exists      bool           `json:"exists"`
	Batch       *BatchResponse `json:"batch,omitempty"`
}

// PredictionResponse is the wire shape for prediction records.
type PredictionResponse struct {
	Hash        string    `json:"hash"`
	DrugName    string    `json:"drug_name"`
	Location    string    `json:"location"`
	Probability uint32    `json:"probability"`
	RecordedAt  time.Time `json:"recorded_at"`
	Oracle      string    `json:"oracle"`
}

// FromPrediction converts a domain record to its wire shape.
func FromPrediction(prediction models.ShortagePrediction) PredictionResponse {
	return PredictionResponse{
		Hash:        prediction.Hash.String(),
		DrugName:    prediction.DrugName,
		Location:    prediction.Location,
		Probability: prediction.Probability,
		RecordedAt:  prediction.RecordedAt,
		Oracle:      prediction.Oracle.String(),
	}
}

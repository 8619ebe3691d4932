package models

import (
	"time"

	"medchain/pkg/domain"
	dErrors "medchain/pkg/domain-errors"
)

// MaxProbability is the upper bound of the on-chain probability scale.
// Probabilities are integers in [0, 1000]; 1000 means certainty.
const MaxProbability = 1000

// ShortagePrediction is an immutable oracle attestation. There is no update
// path: recording at an existing hash replaces the whole record (the ledger
// deliberately keeps no uniqueness guard on this path, unlike batches).
type ShortagePrediction struct {
	Hash        domain.Hash     `json:"hash"`
	DrugName    string          `json:"drug_name"`
	Location    string          `json:"location"`
	Probability uint32          `json:"probability"`
	RecordedAt  time.Time       `json:"recorded_at"`
	Oracle      domain.Identity `json:"oracle"`
}

// NewShortagePrediction constructs a prediction record, enforcing the
// probability scale.
func NewShortagePrediction(
	hash domain.Hash,
	drugName, location string,
	probability uint32,
	oracle domain.Identity,
	now time.Time,
) (ShortagePrediction, error) {
	if hash.IsZero() {
		return ShortagePrediction{}, dErrors.New(dErrors.CodeInvariantViolation, "prediction hash cannot be zero")
	}
	if probability > MaxProbability {
		return ShortagePrediction{}, dErrors.New(dErrors.CodeInvariantViolation, "probability exceeds scale maximum")
	}
	return ShortagePrediction{
		Hash:        hash,
		DrugName:    drugName,
		Location:    location,
		Probability: probability,
		RecordedAt:  now,
		Oracle:      oracle,
	}, nil
}

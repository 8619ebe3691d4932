package models

import (
	"time"

	"medchain/pkg/domain"
)

// EventKind names a ledger-observable domain event.
type EventKind string

const (
	EventDrugRegistered   EventKind = "DrugRegistered"
	EventDrugVerified     EventKind = "DrugVerified"
	EventShortageAlert    EventKind = "ShortageAlert"
	EventFakeDrugDetected EventKind = "FakeDrugDetected"
)

// Event is the envelope every committed mutation emits. Height is the ledger
// height at which the mutation committed; envelopes for a single operation
// share one height and are ordered within it.
type Event struct {
	Kind      EventKind `json:"kind"`
	Height    uint64    `json:"height"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// DrugRegistered is emitted when an issuer registers a batch.
type DrugRegistered struct {
	Hash    domain.Hash     `json:"hash"`
	Issuer  domain.Identity `json:"issuer"`
	BatchID string          `json:"batch_id"`
}

// DrugVerified is emitted when a valid batch is verified.
type DrugVerified struct {
	Hash        domain.Hash     `json:"hash"`
	Verifier    domain.Identity `json:"verifier"`
	IsAuthentic bool            `json:"is_authentic"`
}

// ShortageAlert is emitted when an oracle records a shortage prediction.
type ShortageAlert struct {
	PredictionHash domain.Hash     `json:"prediction_hash"`
	DrugName       string          `json:"drug_name"`
	Location       string          `json:"location"`
	Probability    uint32          `json:"probability"`
	Oracle         domain.Identity `json:"oracle"`
}

// FakeDrugDetected is emitted for every fake report, including reports
// against hashes with no prior registration. Third parties may flag
// suspicious hashes pre-registration.
type FakeDrugDetected struct {
	Hash     domain.Hash     `json:"hash"`
	Reporter domain.Identity `json:"reporter"`
	Reason   string          `json:"reason"`
}

// Stats is the read-only ledger summary.
type Stats struct {
	TotalRegistered    uint64 `json:"total_registered"`
	TotalVerifications uint64 `json:"total_verifications"`
	Height             uint64 `json:"height"`
}

package models

import (
	"time"

	"medchain/pkg/domain"
	dErrors "medchain/pkg/domain-errors"
)

// DrugBatch is the aggregate root for a provenance-tracked batch.
//
// Invariants:
//   - Hash is non-zero and immutable after construction
//   - Issuer is set at registration and never changes
//   - Verifications only increases
//   - Valid transitions one way: true -> false (fake report); never back
//   - Records are never physically deleted
type DrugBatch struct {
	Hash          domain.Hash     `json:"hash"`
	Issuer        domain.Identity `json:"issuer"`
	RegisteredAt  time.Time       `json:"registered_at"`
	BatchID       string          `json:"batch_id"`
	Valid         bool            `json:"valid"`
	Verifications uint64          `json:"verifications"`
}

// NewDrugBatch constructs a freshly registered batch with a zero
// verification counter.
func NewDrugBatch(hash domain.Hash, issuer domain.Identity, batchID string, now time.Time) (DrugBatch, error) {
	if hash.IsZero() {
		return DrugBatch{}, dErrors.New(dErrors.CodeInvariantViolation, "batch hash cannot be zero")
	}
	if issuer.IsNil() {
		return DrugBatch{}, dErrors.New(dErrors.CodeInvariantViolation, "batch issuer cannot be empty")
	}
	return DrugBatch{
		Hash:          hash,
		Issuer:        issuer,
		RegisteredAt:  now,
		BatchID:       batchID,
		Valid:         true,
		Verifications: 0,
	}, nil
}

// RecordVerification increments the verification counter. Callers must only
// invoke this on a currently valid batch.
func (b *DrugBatch) RecordVerification() {
	b.Verifications++
}

// Invalidate flips the batch to the invalidated state. Idempotent by
// construction: invalidating an already-invalid batch is a no-op.
// There is no transition back to valid.
func (b *DrugBatch) Invalidate() bool {
	if !b.Valid {
		return false
	}
	b.Valid = false
	return true
}

// Package store persists ledger state. Stores are interface-driven to keep
// the state machine testable and to allow swapping in-memory, LevelDB, or
// PostgreSQL persistence without rewiring ledger logic.
//
// Stores return sentinel errors and perform no validation: uniqueness,
// authorization, and counter discipline all live in the ledger, which
// serializes every mutating call. Implementations only need to be safe for
// concurrent reads.
package store

import (
	"context"

	"medchain/internal/registry/models"
	"medchain/pkg/domain"
)

// Change is the complete write set of one ledger mutation. Batch and
// Prediction are optional; Stats is always written. Record writes insert or
// replace — replacement is intentional, predictions carry no uniqueness
// guard.
type Change struct {
	Batch      *models.DrugBatch
	Prediction *models.ShortagePrediction
	Stats      models.Stats
}

// Store is the persistence surface the ledger drives.
type Store interface {
	// GetBatch returns the batch at hash or sentinel.ErrNotFound.
	GetBatch(ctx context.Context, hash domain.Hash) (models.DrugBatch, error)
	// GetPrediction returns the prediction at hash or sentinel.ErrNotFound.
	GetPrediction(ctx context.Context, hash domain.Hash) (models.ShortagePrediction, error)
	// Counters returns the persisted ledger counters.
	Counters(ctx context.Context) (models.Stats, error)
	// Apply writes the change atomically: either every write in it becomes
	// durable or none does.
	Apply(ctx context.Context, change Change) error
	// Close releases backend resources.
	Close() error
}

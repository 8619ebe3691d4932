package store

import (
	"context"
	"sync"

	"medchain/internal/registry/models"
	"medchain/pkg/domain"
	"medchain/pkg/platform/sentinel"
)

// MemoryStore keeps ledger state in process memory. It is the default
// backend and the one every test uses; it intentionally favors clarity over
// performance.
type MemoryStore struct {
	mu          sync.RWMutex
	batches     map[domain.Hash]models.DrugBatch
	predictions map[domain.Hash]models.ShortagePrediction
	counters    models.Stats
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		batches:     make(map[domain.Hash]models.DrugBatch),
		predictions: make(map[domain.Hash]models.ShortagePrediction),
	}
}

func (s *MemoryStore) GetBatch(_ context.Context, hash domain.Hash) (models.DrugBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if batch, ok := s.batches[hash]; ok {
		return batch, nil
	}
	return models.DrugBatch{}, sentinel.ErrNotFound
}

func (s *MemoryStore) GetPrediction(_ context.Context, hash domain.Hash) (models.ShortagePrediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if prediction, ok := s.predictions[hash]; ok {
		return prediction, nil
	}
	return models.ShortagePrediction{}, sentinel.ErrNotFound
}

func (s *MemoryStore) Counters(_ context.Context) (models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters, nil
}

func (s *MemoryStore) Apply(_ context.Context, change Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if change.Batch != nil {
		s.batches[change.Batch.Hash] = *change.Batch
	}
	if change.Prediction != nil {
		s.predictions[change.Prediction.Hash] = *change.Prediction
	}
	s.counters = change.Stats
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

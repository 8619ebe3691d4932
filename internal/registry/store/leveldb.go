package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"

	"medchain/internal/registry/models"
	"medchain/pkg/domain"
	"medchain/pkg/platform/sentinel"
)

// Key scheme:
//   - "batch_<hex>"      => DrugBatch JSON
//   - "prediction_<hex>" => ShortagePrediction JSON
//   - "meta_counters"    => Stats JSON
const (
	batchKeyPrefix      = "batch_"
	predictionKeyPrefix = "prediction_"
	countersKey         = "meta_counters"
)

// LevelDBStore persists ledger state in a local LevelDB directory. Suited to
// single-node deployments that need durability without an external database.
type LevelDBStore struct {
	db *leveldb.DB
}

// OpenLevelDB opens (or creates) the LevelDB directory at path.
func OpenLevelDB(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb at %s: %w", path, err)
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) GetBatch(_ context.Context, hash domain.Hash) (models.DrugBatch, error) {
	var batch models.DrugBatch
	if err := s.get(batchKeyPrefix+hash.String(), &batch); err != nil {
		return models.DrugBatch{}, err
	}
	return batch, nil
}

func (s *LevelDBStore) GetPrediction(_ context.Context, hash domain.Hash) (models.ShortagePrediction, error) {
	var prediction models.ShortagePrediction
	if err := s.get(predictionKeyPrefix+hash.String(), &prediction); err != nil {
		return models.ShortagePrediction{}, err
	}
	return prediction, nil
}

func (s *LevelDBStore) Counters(_ context.Context) (models.Stats, error) {
	var stats models.Stats
	err := s.get(countersKey, &stats)
	if errors.Is(err, sentinel.ErrNotFound) {
		// Fresh database: counters start at zero.
		return models.Stats{}, nil
	}
	if err != nil {
		return models.Stats{}, err
	}
	return stats, nil
}

// Apply stages every write into one leveldb.Batch so the mutation lands
// atomically.
func (s *LevelDBStore) Apply(_ context.Context, change Change) error {
	wb := new(leveldb.Batch)
	if change.Batch != nil {
		if err := stage(wb, batchKeyPrefix+change.Batch.Hash.String(), change.Batch); err != nil {
			return err
		}
	}
	if change.Prediction != nil {
		if err := stage(wb, predictionKeyPrefix+change.Prediction.Hash.String(), change.Prediction); err != nil {
			return err
		}
	}
	if err := stage(wb, countersKey, change.Stats); err != nil {
		return err
	}
	if err := s.db.Write(wb, nil); err != nil {
		return fmt.Errorf("leveldb write batch: %w", err)
	}
	return nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

func (s *LevelDBStore) get(key string, v any) error {
	raw, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("leveldb get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func stage(wb *leveldb.Batch, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	wb.Put([]byte(key), raw)
	return nil
}

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"medchain/internal/registry/models"
	"medchain/pkg/domain"
	"medchain/pkg/platform/sentinel"
)

func TestLevelDBStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenLevelDB(dir)
	if err != nil {
		t.Fatalf("OpenLevelDB: %v", err)
	}

	hash := domain.Hash{0: 0xcc}
	batch, err := models.NewDrugBatch(hash, "0xissuer", "LOT-7", time.Unix(1700000000, 0).UTC())
	if err != nil {
		t.Fatalf("NewDrugBatch: %v", err)
	}
	stats := models.Stats{TotalRegistered: 1, Height: 1}
	if err := s.Apply(ctx, Change{Batch: &batch, Stats: stats}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenLevelDB(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetBatch(ctx, hash)
	if err != nil {
		t.Fatalf("GetBatch after reopen: %v", err)
	}
	if got.BatchID != "LOT-7" || !got.Valid {
		t.Fatalf("batch did not survive reopen: %+v", got)
	}

	gotStats, err := reopened.Counters(ctx)
	if err != nil {
		t.Fatalf("Counters after reopen: %v", err)
	}
	if gotStats != stats {
		t.Fatalf("counters mismatch after reopen: got %+v, want %+v", gotStats, stats)
	}
}

func TestLevelDBStoreApplyWritesFullChange(t *testing.T) {
	ctx := context.Background()
	s, err := OpenLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenLevelDB: %v", err)
	}
	defer s.Close()

	now := time.Unix(1700000000, 0).UTC()
	batch, err := models.NewDrugBatch(domain.Hash{0: 0x0a}, "0xissuer", "LOT-3", now)
	if err != nil {
		t.Fatalf("NewDrugBatch: %v", err)
	}
	prediction, err := models.NewShortagePrediction(domain.Hash{0: 0x0b}, "insulin", "pune-east", 700, "0xoracle", now)
	if err != nil {
		t.Fatalf("NewShortagePrediction: %v", err)
	}
	stats := models.Stats{TotalRegistered: 1, Height: 2}

	if err := s.Apply(ctx, Change{Batch: &batch, Prediction: &prediction, Stats: stats}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if _, err := s.GetBatch(ctx, batch.Hash); err != nil {
		t.Fatalf("GetBatch after apply: %v", err)
	}
	if _, err := s.GetPrediction(ctx, prediction.Hash); err != nil {
		t.Fatalf("GetPrediction after apply: %v", err)
	}
	got, err := s.Counters(ctx)
	if err != nil {
		t.Fatalf("Counters after apply: %v", err)
	}
	if got != stats {
		t.Fatalf("counters mismatch: got %+v, want %+v", got, stats)
	}
}

func TestLevelDBStoreMissingEntries(t *testing.T) {
	ctx := context.Background()
	s, err := OpenLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenLevelDB: %v", err)
	}
	defer s.Close()

	if _, err := s.GetBatch(ctx, domain.Hash{0: 1}); !errors.Is(err, sentinel.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetPrediction(ctx, domain.Hash{0: 2}); !errors.Is(err, sentinel.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	stats, err := s.Counters(ctx)
	if err != nil {
		t.Fatalf("Counters on fresh db: %v", err)
	}
	if stats != (models.Stats{}) {
		t.Fatalf("fresh db must report zero counters, got %+v", stats)
	}
}

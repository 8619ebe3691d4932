package registry

import (
	"context"
	"errors"
	"sync"

	"medchain/internal/registry/events"
	regmetrics "medchain/internal/registry/metrics"
	"medchain/internal/registry/models"
	"medchain/internal/registry/store"
	"medchain/pkg/domain"
	dErrors "medchain/pkg/domain-errors"
	"medchain/pkg/platform/sentinel"
	"medchain/pkg/requestcontext"
)

// DemoLedger is the permission-free variant used for demos and local
// exploration. The data shape matches the production ledger, with three
// deliberate reductions:
//
//   - no role checks anywhere;
//   - RegisterBatch takes only the hash (records carry an empty batch id)
//     and rejects re-registration of any existing hash, valid or not;
//   - RecordShortage is fire-and-forget: it emits the ShortageAlert event
//     without persisting a prediction record at all.
type DemoLedger struct {
	mu      sync.Mutex
	store   demoStore
	sink    events.Sink
	metrics *regmetrics.Metrics
}

// demoStore is the narrow slice of the full Store the demo ledger needs.
type demoStore interface {
	GetBatch(ctx context.Context, hash domain.Hash) (models.DrugBatch, error)
	Counters(ctx context.Context) (models.Stats, error)
	Apply(ctx context.Context, change store.Change) error
}

// NewDemoLedger constructs the demo variant.
func NewDemoLedger(s demoStore, sink events.Sink, metrics *regmetrics.Metrics) *DemoLedger {
	return &DemoLedger{store: s, sink: sink, metrics: metrics}
}

// RegisterBatch creates a batch record for hash with an empty batch id.
// Any existing record at hash, valid or invalidated, is a conflict.
func (l *DemoLedger) RegisterBatch(ctx context.Context, caller domain.Identity, hash domain.Hash) (models.DrugBatch, error) {
	if hash.IsZero() {
		return models.DrugBatch{}, dErrors.New(dErrors.CodeBadRequest, "hash cannot be zero")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.store.GetBatch(ctx, hash)
	switch {
	case err == nil:
		return models.DrugBatch{}, dErrors.New(dErrors.CodeConflict, "hash already registered")
	case !errors.Is(err, sentinel.ErrNotFound):
		return models.DrugBatch{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up batch")
	}

	now := requestcontext.Now(ctx)
	batch, err := models.NewDrugBatch(hash, caller, "", now)
	if err != nil {
		return models.DrugBatch{}, err
	}
	height, err := l.commit(ctx, store.Change{Batch: &batch}, func(stats *models.Stats) {
		stats.TotalRegistered++
	})
	if err != nil {
		return models.DrugBatch{}, err
	}

	l.emit(ctx, models.Event{
		Kind:      models.EventDrugRegistered,
		Height:    height,
		Timestamp: now,
		Payload:   models.DrugRegistered{Hash: hash, Issuer: caller},
	})
	l.metrics.IncBatchesRegistered()
	return batch, nil
}

// VerifyBatch matches the production semantics: a no-op on missing or
// invalidated entries, counter increments and DrugVerified on valid ones.
func (l *DemoLedger) VerifyBatch(ctx context.Context, caller domain.Identity, hash domain.Hash) (models.DrugBatch, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch, err := l.store.GetBatch(ctx, hash)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.DrugBatch{}, false, nil
	}
	if err != nil {
		return models.DrugBatch{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up batch")
	}
	if !batch.Valid {
		return batch, false, nil
	}

	batch.RecordVerification()
	height, err := l.commit(ctx, store.Change{Batch: &batch}, func(stats *models.Stats) {
		stats.TotalVerifications++
	})
	if err != nil {
		return models.DrugBatch{}, false, err
	}

	l.emit(ctx, models.Event{
		Kind:      models.EventDrugVerified,
		Height:    height,
		Timestamp: requestcontext.Now(ctx),
		Payload:   models.DrugVerified{Hash: hash, Verifier: caller, IsAuthentic: true},
	})
	l.metrics.IncVerifications()
	return batch, true, nil
}

// RecordShortage validates the probability scale, emits ShortageAlert, and
// persists nothing. The alert carries a zero prediction hash because no
// prediction entity exists in this variant.
func (l *DemoLedger) RecordShortage(ctx context.Context, caller domain.Identity, drugName, location string, probability uint32) error {
	if probability > models.MaxProbability {
		return dErrors.New(dErrors.CodeBadRequest, "probability exceeds 1000")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	height, err := l.commit(ctx, store.Change{}, func(*models.Stats) {})
	if err != nil {
		return err
	}

	l.emit(ctx, models.Event{
		Kind:      models.EventShortageAlert,
		Height:    height,
		Timestamp: requestcontext.Now(ctx),
		Payload: models.ShortageAlert{
			DrugName:    drugName,
			Location:    location,
			Probability: probability,
			Oracle:      caller,
		},
	})
	l.metrics.IncPredictionsRecorded()
	return nil
}

// ReportFake matches the production semantics without any role gate.
func (l *DemoLedger) ReportFake(ctx context.Context, caller domain.Identity, hash domain.Hash, reason string) error {
	if hash.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "hash cannot be zero")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var change store.Change
	batch, err := l.store.GetBatch(ctx, hash)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up batch")
	}
	if err == nil && batch.Invalidate() {
		change.Batch = &batch
	}

	height, err := l.commit(ctx, change, func(*models.Stats) {})
	if err != nil {
		return err
	}

	l.emit(ctx, models.Event{
		Kind:      models.EventFakeDrugDetected,
		Height:    height,
		Timestamp: requestcontext.Now(ctx),
		Payload:   models.FakeDrugDetected{Hash: hash, Reporter: caller, Reason: reason},
	})
	l.metrics.IncFakeReports()
	return nil
}

// GetBatch returns the batch at hash.
func (l *DemoLedger) GetBatch(ctx context.Context, hash domain.Hash) (models.DrugBatch, error) {
	batch, err := l.store.GetBatch(ctx, hash)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.DrugBatch{}, dErrors.New(dErrors.CodeNotFound, "batch not found")
	}
	if err != nil {
		return models.DrugBatch{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up batch")
	}
	return batch, nil
}

// Stats returns the global counters and current ledger height.
func (l *DemoLedger) Stats(ctx context.Context) (models.Stats, error) {
	stats, err := l.store.Counters(ctx)
	if err != nil {
		return models.Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read counters")
	}
	return stats, nil
}

func (l *DemoLedger) commit(ctx context.Context, change store.Change, mutate func(*models.Stats)) (uint64, error) {
	stats, err := l.store.Counters(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read counters")
	}
	mutate(&stats)
	stats.Height++
	change.Stats = stats
	if err := l.store.Apply(ctx, change); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit mutation")
	}
	return stats.Height, nil
}

func (l *DemoLedger) emit(ctx context.Context, event models.Event) {
	if l.sink != nil {
		l.sink.Publish(ctx, event)
	}
}

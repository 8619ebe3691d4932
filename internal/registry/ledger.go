// Package registry implements the on-chain provenance ledger as an in-process
// state machine. Every mutating operation executes atomically and in total
// order: one operation fully completes, including event emission, before the
// next begins. Reads observe a consistent snapshot as of the last committed
// mutation.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"medchain/internal/registry/accesscontrol"
	"medchain/internal/registry/events"
	regmetrics "medchain/internal/registry/metrics"
	"medchain/internal/registry/models"
	"medchain/internal/registry/store"
	"medchain/pkg/domain"
	dErrors "medchain/pkg/domain-errors"
	"medchain/pkg/platform/sentinel"
	"medchain/pkg/requestcontext"
)

// Ledger is the permissioned production variant. Role checks gate issuance
// and prediction recording; verification and fake reporting stay open to
// anyone.
type Ledger struct {
	mu      sync.Mutex
	store   store.Store
	roles   *accesscontrol.Roles
	sink    events.Sink
	metrics *regmetrics.Metrics
	logger  *slog.Logger
}

type ledgerConfig struct {
	sink    events.Sink
	metrics *regmetrics.Metrics
	logger  *slog.Logger
}

// Option configures optional ledger collaborators.
type Option func(*ledgerConfig)

// WithSink sets the event sink committed mutations publish to.
func WithSink(sink events.Sink) Option {
	return func(c *ledgerConfig) { c.sink = sink }
}

// WithMetrics sets the Prometheus metrics.
func WithMetrics(m *regmetrics.Metrics) Option {
	return func(c *ledgerConfig) { c.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ledgerConfig) { c.logger = logger }
}

// NewLedger constructs the production ledger over the given store and role
// table.
func NewLedger(s store.Store, roles *accesscontrol.Roles, opts ...Option) *Ledger {
	cfg := &ledgerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Ledger{
		store:   s,
		roles:   roles,
		sink:    cfg.sink,
		metrics: cfg.metrics,
		logger:  cfg.logger,
	}
}

// RegisterBatch creates a DrugBatch for hash. The caller must hold the
// issuer role. Registration of a hash whose record is currently valid fails
// with a conflict; a hash invalidated by a fake report may be re-registered.
func (l *Ledger) RegisterBatch(ctx context.Context, caller domain.Identity, hash domain.Hash, batchID string) (models.DrugBatch, error) {
	if !l.roles.HasRole(caller, domain.RoleIssuer) {
		return models.DrugBatch{}, dErrors.New(dErrors.CodeForbidden, "caller does not hold the issuer role")
	}
	if hash.IsZero() {
		return models.DrugBatch{}, dErrors.New(dErrors.CodeBadRequest, "hash cannot be zero")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	existing, err := l.store.GetBatch(ctx, hash)
	switch {
	case err == nil && existing.Valid:
		return models.DrugBatch{}, dErrors.New(dErrors.CodeConflict, "hash already registered")
	case err != nil && !errors.Is(err, sentinel.ErrNotFound):
		return models.DrugBatch{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up batch")
	}

	now := requestcontext.Now(ctx)
	batch, err := models.NewDrugBatch(hash, caller, batchID, now)
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
		Payload:   models.DrugRegistered{Hash: hash, Issuer: caller, BatchID: batchID},
	})
	l.metrics.IncBatchesRegistered()
	return batch, nil
}

// VerifyBatch is callable by anyone. On a valid batch it increments the
// batch's verification counter and the global counter and emits
// DrugVerified. Missing or invalidated batches are a no-op, not an error:
// the record (zero-valued if absent) and the validity flag are returned
// regardless of outcome.
func (l *Ledger) VerifyBatch(ctx context.Context, caller domain.Identity, hash domain.Hash) (models.DrugBatch, bool, error) {
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

// RecordPrediction stores an oracle shortage attestation. The caller must
// hold the oracle role. Unlike RegisterBatch there is no uniqueness guard:
// recording at an existing hash replaces the prior prediction.
func (l *Ledger) RecordPrediction(ctx context.Context, caller domain.Identity, hash domain.Hash, drugName, location string, probability uint32) (models.ShortagePrediction, error) {
	if !l.roles.HasRole(caller, domain.RoleOracle) {
		return models.ShortagePrediction{}, dErrors.New(dErrors.CodeForbidden, "caller does not hold the oracle role")
	}
	if hash.IsZero() {
		return models.ShortagePrediction{}, dErrors.New(dErrors.CodeBadRequest, "hash cannot be zero")
	}
	if probability > models.MaxProbability {
		return models.ShortagePrediction{}, dErrors.New(dErrors.CodeBadRequest, "probability exceeds 1000")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := requestcontext.Now(ctx)
	prediction, err := models.NewShortagePrediction(hash, drugName, location, probability, caller, now)
	if err != nil {
		return models.ShortagePrediction{}, err
	}
	height, err := l.commit(ctx, store.Change{Prediction: &prediction}, func(*models.Stats) {})
	if err != nil {
		return models.ShortagePrediction{}, err
	}

	l.emit(ctx, models.Event{
		Kind:      models.EventShortageAlert,
		Height:    height,
		Timestamp: now,
		Payload: models.ShortageAlert{
			PredictionHash: hash,
			DrugName:       drugName,
			Location:       location,
			Probability:    probability,
			Oracle:         caller,
		},
	})
	l.metrics.IncPredictionsRecorded()
	return prediction, nil
}

// ReportFake is callable by anyone, no role required. A report against a
// currently valid batch invalidates it; reports against absent or
// already-invalid hashes change no state. FakeDrugDetected is emitted
// unconditionally so third parties can flag suspicious hashes before anyone
// registers them.
func (l *Ledger) ReportFake(ctx context.Context, caller domain.Identity, hash domain.Hash, reason string) error {
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
func (l *Ledger) GetBatch(ctx context.Context, hash domain.Hash) (models.DrugBatch, error) {
	batch, err := l.store.GetBatch(ctx, hash)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.DrugBatch{}, dErrors.New(dErrors.CodeNotFound, "batch not found")
	}
	if err != nil {
		return models.DrugBatch{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up batch")
	}
	return batch, nil
}

// GetPrediction returns the prediction at hash.
func (l *Ledger) GetPrediction(ctx context.Context, hash domain.Hash) (models.ShortagePrediction, error) {
	prediction, err := l.store.GetPrediction(ctx, hash)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.ShortagePrediction{}, dErrors.New(dErrors.CodeNotFound, "prediction not found")
	}
	if err != nil {
		return models.ShortagePrediction{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up prediction")
	}
	return prediction, nil
}

// BatchExists reports whether any record (valid or invalidated) exists at
// hash.
func (l *Ledger) BatchExists(ctx context.Context, hash domain.Hash) (bool, error) {
	_, err := l.store.GetBatch(ctx, hash)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up batch")
	}
	return true, nil
}

// Stats returns the global counters and current ledger height.
func (l *Ledger) Stats(ctx context.Context) (models.Stats, error) {
	stats, err := l.store.Counters(ctx)
	if err != nil {
		return models.Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read counters")
	}
	return stats, nil
}

// GrantRole assigns a role. Owner-only; granting an already-granted role
// succeeds silently.
func (l *Ledger) GrantRole(ctx context.Context, caller, identity domain.Identity, role domain.Role) error {
	if !l.roles.IsOwner(caller) {
		return dErrors.New(dErrors.CodeForbidden, "only the owner may administer roles")
	}
	l.roles.Grant(identity, role)
	if l.logger != nil {
		l.logger.InfoContext(ctx, "role granted",
			"identity", identity.String(),
			"role", role.String(),
		)
	}
	return nil
}

// RevokeRole removes a role. Owner-only; revoking an already-revoked role
// succeeds silently.
func (l *Ledger) RevokeRole(ctx context.Context, caller, identity domain.Identity, role domain.Role) error {
	if !l.roles.IsOwner(caller) {
		return dErrors.New(dErrors.CodeForbidden, "only the owner may administer roles")
	}
	l.roles.Revoke(identity, role)
	if l.logger != nil {
		l.logger.InfoContext(ctx, "role revoked",
			"identity", identity.String(),
			"role", role.String(),
		)
	}
	return nil
}

// commit advances the ledger height by one mutation and hands the mutation's
// whole write set to the store in a single atomic apply: a failed commit
// leaves no record behind. Must be called with l.mu held.
func (l *Ledger) commit(ctx context.Context, change store.Change, mutate func(*models.Stats)) (uint64, error) {
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

// emit publishes while the commit lock is held so sinks observe events in
// ledger order.
func (l *Ledger) emit(ctx context.Context, event models.Event) {
	if l.sink != nil {
		l.sink.Publish(ctx, event)
	}
}

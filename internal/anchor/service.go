// Package anchor binds off-chain attestations to on-chain ledger entries.
// The attestation payload is canonicalized, its hash submitted to the
// registry, and the raw payload pushed to an object sink. The sink write is
// fire-and-forget: its failure degrades the receipt to a nil proof location
// but never fails the anchoring.
package anchor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	authmodels "medchain/internal/authenticity/models"
	regmodels "medchain/internal/registry/models"
	shortmodels "medchain/internal/shortage/models"
	"medchain/pkg/canonhash"
	"medchain/pkg/domain"
	dErrors "medchain/pkg/domain-errors"
	"medchain/pkg/requestcontext"
)

const defaultSinkTimeout = 2 * time.Second

// Registry is the slice of the ledger the anchor submits hashes through.
type Registry interface {
	RegisterBatch(ctx context.Context, caller domain.Identity, hash domain.Hash, batchID string) (regmodels.DrugBatch, error)
	RecordPrediction(ctx context.Context, caller domain.Identity, hash domain.Hash, drugName, location string, probability uint32) (regmodels.ShortagePrediction, error)
}

// Receipt is the durable outcome of an anchoring. ProofURL is nil when the
// object sink was unavailable or not configured.
type Receipt struct {
	Hash     domain.Hash `json:"hash"`
	ProofURL *string     `json:"proof_url"`
}

// Service anchors attestations.
type Service struct {
	registry    Registry
	sink        ObjectSink
	sinkTimeout time.Duration
	tracer      trace.Tracer
	logger      *slog.Logger
}

// ServiceOption configures optional collaborators.
type ServiceOption func(*Service)

// WithSinkTimeout bounds each object-sink write.
func WithSinkTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.sinkTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// NewService constructs the anchor over a registry and an optional sink.
func NewService(registry Registry, sink ObjectSink, opts ...ServiceOption) *Service {
	s := &Service{
		registry:    registry,
		sink:        sink,
		sinkTimeout: defaultSinkTimeout,
		tracer:      otel.Tracer("medchain/anchor"),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnchorVerdict registers the verdict's content hash as a drug batch. The
// registry call is the only hard failure mode.
func (s *Service) AnchorVerdict(ctx context.Context, caller domain.Identity, verdict authmodels.Verdict) (Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "anchor.verdict")
	defer span.End()

	hash, payload, err := canonhash.SumObject(verdict)
	if err != nil {
		return Receipt{}, dErrors.Wrap(err, dErrors.CodeInternal, "canonicalize verdict")
	}

	batchID := ""
	if verdict.BatchInfo != nil {
		batchID = verdict.BatchInfo.BatchID
	}
	if _, err := s.registry.RegisterBatch(ctx, caller, hash, batchID); err != nil {
		span.RecordError(err)
		return Receipt{}, err
	}

	return Receipt{Hash: hash, ProofURL: s.persist(ctx, "authenticity", payload)}, nil
}

// AnchorPrediction records the prediction's content hash on the ledger. The
// [0,1] probability is scaled to the ledger's per-mille representation.
func (s *Service) AnchorPrediction(ctx context.Context, caller domain.Identity, prediction shortmodels.Prediction) (Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "anchor.prediction")
	defer span.End()

	hash, payload, err := canonhash.SumObject(prediction)
	if err != nil {
		return Receipt{}, dErrors.Wrap(err, dErrors.CodeInternal, "canonicalize prediction")
	}

	perMille := uint32(math.Round(prediction.ShortageProbability * 1000))
	if _, err := s.registry.RecordPrediction(ctx, caller, hash, prediction.DrugName, prediction.Location, perMille); err != nil {
		span.RecordError(err)
		return Receipt{}, err
	}

	return Receipt{Hash: hash, ProofURL: s.persist(ctx, "shortage", payload)}, nil
}

// persist attempts the bounded sink write and returns the proof location, or
// nil on any failure.
func (s *Service) persist(ctx context.Context, kind string, payload []byte) *string {
	if s.sink == nil {
		return nil
	}
	key := fmt.Sprintf("%s_%d.json", kind, requestcontext.Now(ctx).UnixNano())

	ctx, cancel := context.WithTimeout(ctx, s.sinkTimeout)
	defer cancel()

	url, err := s.sink.Put(ctx, key, payload)
	if err != nil {
		s.logger.WarnContext(ctx, "proof sink write failed",
			"key", key,
			"error", err,
		)
		return nil
	}
	return &url
}

package anchor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	authmodels "medchain/internal/authenticity/models"
	regmodels "medchain/internal/registry/models"
	shortmodels "medchain/internal/shortage/models"
	"medchain/pkg/domain"
	dErrors "medchain/pkg/domain-errors"
	"medchain/pkg/requestcontext"
)

const oracle = domain.Identity("0xoracle")

type fakeRegistry struct {
	registerErr error
	recordErr   error

	registeredHash  domain.Hash
	registeredBatch string
	recordedHash    domain.Hash
	recordedProb    uint32
}

func (f *fakeRegistry) RegisterBatch(_ context.Context, _ domain.Identity, hash domain.Hash, batchID string) (regmodels.DrugBatch, error) {
	if f.registerErr != nil {
		return regmodels.DrugBatch{}, f.registerErr
	}
	f.registeredHash = hash
	f.registeredBatch = batchID
	return regmodels.DrugBatch{Hash: hash, BatchID: batchID, Valid: true}, nil
}

func (f *fakeRegistry) RecordPrediction(_ context.Context, _ domain.Identity, hash domain.Hash, _, _ string, probability uint32) (regmodels.ShortagePrediction, error) {
	if f.recordErr != nil {
		return regmodels.ShortagePrediction{}, f.recordErr
	}
	f.recordedHash = hash
	f.recordedProb = probability
	return regmodels.ShortagePrediction{Hash: hash, Probability: probability}, nil
}

type failingSink struct{}

func (failingSink) Put(context.Context, string, []byte) (string, error) {
	return "", errors.New("bucket unreachable")
}

func testCtx() context.Context {
	return requestcontext.WithTime(context.Background(), time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC))
}

func sampleVerdict() authmodels.Verdict {
	return authmodels.Verdict{
		IsAuthentic: true,
		Confidence:  1,
		RiskLevel:   authmodels.RiskLow,
		Analysis:    authmodels.Analysis{Brightness: 0.5, Sharpness: 3000, Flags: []string{}},
		BatchInfo:   &authmodels.BatchInfo{BatchID: "MED-DEADBEEF", Manufacturer: "Cipla Ltd"},
	}
}

func TestAnchorVerdict(t *testing.T) {
	registry := &fakeRegistry{}
	sink := NewMemorySink()
	svc := NewService(registry, sink)

	receipt, err := svc.AnchorVerdict(testCtx(), oracle, sampleVerdict())
	if err != nil {
		t.Fatalf("AnchorVerdict: %v", err)
	}
	if receipt.Hash.IsZero() {
		t.Fatal("receipt must carry the content hash")
	}
	if registry.registeredHash != receipt.Hash {
		t.Fatalf("registry saw hash %s, receipt says %s", registry.registeredHash, receipt.Hash)
	}
	if registry.registeredBatch != "MED-DEADBEEF" {
		t.Fatalf("batch id not forwarded: %q", registry.registeredBatch)
	}
	if receipt.ProofURL == nil || !strings.HasPrefix(*receipt.ProofURL, "memory://authenticity_") {
		t.Fatalf("unexpected proof url: %v", receipt.ProofURL)
	}
}

func TestAnchorVerdictSinkFailureIsSoft(t *testing.T) {
	registry := &fakeRegistry{}
	svc := NewService(registry, failingSink{})

	receipt, err := svc.AnchorVerdict(testCtx(), oracle, sampleVerdict())
	if err != nil {
		t.Fatalf("sink failure must not fail anchoring: %v", err)
	}
	if receipt.ProofURL != nil {
		t.Fatalf("expected nil proof url on sink failure, got %q", *receipt.ProofURL)
	}
	if registry.registeredHash.IsZero() {
		t.Fatal("registry submission must still happen")
	}
}

func TestAnchorVerdictRegistryFailureIsHard(t *testing.T) {
	registry := &fakeRegistry{registerErr: dErrors.New(dErrors.CodeConflict, "already registered")}
	svc := NewService(registry, NewMemorySink())

	_, err := svc.AnchorVerdict(testCtx(), oracle, sampleVerdict())
	if !dErrors.HasCode(err, dErrors.CodeConflict) {
		t.Fatalf("registry error must propagate unchanged, got %v", err)
	}
}

func TestAnchorPrediction(t *testing.T) {
	registry := &fakeRegistry{}
	svc := NewService(registry, NewMemorySink())

	prediction := shortmodels.Prediction{
		DrugName:            "insulin",
		Location:            "mumbai-central",
		ShortageProbability: 0.85,
		Severity:            shortmodels.SeverityCritical,
	}
	receipt, err := svc.AnchorPrediction(testCtx(), oracle, prediction)
	if err != nil {
		t.Fatalf("AnchorPrediction: %v", err)
	}
	if registry.recordedProb != 850 {
		t.Fatalf("expected per-mille probability 850, got %d", registry.recordedProb)
	}
	if registry.recordedHash != receipt.Hash {
		t.Fatalf("registry saw hash %s, receipt says %s", registry.recordedHash, receipt.Hash)
	}
	if receipt.ProofURL == nil || !strings.HasPrefix(*receipt.ProofURL, "memory://shortage_") {
		t.Fatalf("unexpected proof url: %v", receipt.ProofURL)
	}
}

func TestAnchorDeterministicHash(t *testing.T) {
	registry := &fakeRegistry{}
	svc := NewService(registry, nil)

	first, err := svc.AnchorVerdict(testCtx(), oracle, sampleVerdict())
	if err != nil {
		t.Fatalf("AnchorVerdict: %v", err)
	}
	second, err := svc.AnchorVerdict(testCtx(), oracle, sampleVerdict())
	if err != nil {
		t.Fatalf("AnchorVerdict: %v", err)
	}
	if first.Hash != second.Hash {
		t.Fatalf("identical payloads must hash identically: %s vs %s", first.Hash, second.Hash)
	}
}

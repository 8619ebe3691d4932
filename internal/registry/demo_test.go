package registry

import (
	"testing"

	"medchain/internal/registry/events"
	"medchain/internal/registry/models"
	"medchain/internal/registry/store"
	"medchain/pkg/domain"
	dErrors "medchain/pkg/domain-errors"
)

func newTestDemoLedger(t *testing.T) (*DemoLedger, *events.MemorySink) {
	t.Helper()
	sink := events.NewMemorySink()
	return NewDemoLedger(store.NewMemory(), sink, nil), sink
}

func TestDemoRegisterBatchNoRoleRequired(t *testing.T) {
	ctx := testCtx()
	ledger, _ := newTestDemoLedger(t)

	batch, err := ledger.RegisterBatch(ctx, stranger, domain.Hash{0: 0x01})
	if err != nil {
		t.Fatalf("demo RegisterBatch must not require a role: %v", err)
	}
	if batch.BatchID != "" {
		t.Fatalf("demo records carry an empty batch id, got %q", batch.BatchID)
	}
}

func TestDemoRegisterBatchRejectsAnyDuplicate(t *testing.T) {
	ctx := testCtx()
	ledger, _ := newTestDemoLedger(t)
	hash := domain.Hash{0: 0x02}

	if _, err := ledger.RegisterBatch(ctx, stranger, hash); err != nil {
		t.Fatalf("RegisterBatch: %v", err)
	}
	if err := ledger.ReportFake(ctx, stranger, hash, "fake"); err != nil {
		t.Fatalf("ReportFake: %v", err)
	}

	// Unlike production, even an invalidated hash cannot be re-registered.
	if _, err := ledger.RegisterBatch(ctx, stranger, hash); !dErrors.HasCode(err, dErrors.CodeConflict) {
		t.Fatalf("expected conflict on re-registration of invalidated hash, got %v", err)
	}
}

func TestDemoRecordShortageFireAndForget(t *testing.T) {
	ctx := testCtx()
	ledger, sink := newTestDemoLedger(t)

	if err := ledger.RecordShortage(ctx, stranger, "insulin", "mumbai-central", 850); err != nil {
		t.Fatalf("RecordShortage: %v", err)
	}

	seen := sink.Events()
	if len(seen) != 1 || seen[0].Kind != models.EventShortageAlert {
		t.Fatalf("expected one ShortageAlert event, got %+v", seen)
	}
	alert, ok := seen[0].Payload.(models.ShortageAlert)
	if !ok {
		t.Fatalf("unexpected payload type %T", seen[0].Payload)
	}
	if !alert.PredictionHash.IsZero() {
		t.Fatalf("demo alerts carry a zero prediction hash, got %s", alert.PredictionHash)
	}
	if alert.Probability != 850 {
		t.Fatalf("probability mismatch: %d", alert.Probability)
	}
}

func TestDemoRecordShortageValidatesProbability(t *testing.T) {
	ctx := testCtx()
	ledger, _ := newTestDemoLedger(t)

	if err := ledger.RecordShortage(ctx, stranger, "insulin", "mumbai-central", 1001); !dErrors.HasCode(err, dErrors.CodeBadRequest) {
		t.Fatalf("expected bad request for probability 1001, got %v", err)
	}
}

func TestDemoVerifyBatchCounters(t *testing.T) {
	ctx := testCtx()
	ledger, _ := newTestDemoLedger(t)
	hash := domain.Hash{0: 0x03}

	if _, err := ledger.RegisterBatch(ctx, stranger, hash); err != nil {
		t.Fatalf("RegisterBatch: %v", err)
	}
	batch, authentic, err := ledger.VerifyBatch(ctx, stranger, hash)
	if err != nil {
		t.Fatalf("VerifyBatch: %v", err)
	}
	if !authentic || batch.Verifications != 1 {
		t.Fatalf("expected authentic with counter 1, got %v / %d", authentic, batch.Verifications)
	}
}

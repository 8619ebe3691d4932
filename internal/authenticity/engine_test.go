package authenticity

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"medchain/internal/authenticity/models"
	dErrors "medchain/pkg/domain-errors"
	"medchain/pkg/requestcontext"
)

func testCtx() context.Context {
	return requestcontext.WithTime(context.Background(), time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC))
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// grayCheckerboard alternates two mid-gray tones per pixel: mid brightness,
// strong luminance gradient, small color variance.
func grayCheckerboard(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(100)
			if (x+y)%2 == 0 {
				v = 156
			}
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return encodePNG(t, img)
}

func uniformImage(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return encodePNG(t, img)
}

func TestAnalyzeCleanImageIsAuthentic(t *testing.T) {
	engine := NewEngine(nil, nil)

	verdict, err := engine.Analyze(testCtx(), grayCheckerboard(t))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if verdict.AnomalyScore != 0 {
		t.Fatalf("expected zero anomaly score, got %f (flags %v)", verdict.AnomalyScore, verdict.Analysis.Flags)
	}
	if !verdict.IsAuthentic || verdict.Confidence != 1 {
		t.Fatalf("expected authentic verdict at full confidence, got %+v", verdict)
	}
	if verdict.RiskLevel != models.RiskLow {
		t.Fatalf("expected low risk, got %s", verdict.RiskLevel)
	}
	if verdict.BatchInfo == nil || verdict.BatchInfo.BatchID == "" {
		t.Fatalf("authentic verdicts must carry synthesized batch info, got %+v", verdict.BatchInfo)
	}
	if len(verdict.Analysis.Flags) != 0 {
		t.Fatalf("expected no flags, got %v", verdict.Analysis.Flags)
	}
}

func TestAnalyzeDarkFlatImageIsFake(t *testing.T) {
	engine := NewEngine(nil, nil)

	// Near-black and featureless: trips the brightness and sharpness checks.
	verdict, err := engine.Analyze(testCtx(), uniformImage(t, color.NRGBA{R: 10, G: 10, B: 10, A: 255}))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if verdict.IsAuthentic {
		t.Fatalf("expected fake verdict, got %+v", verdict)
	}
	if verdict.AnomalyScore < 0.6 {
		t.Fatalf("expected brightness and sharpness contributions, got score %f", verdict.AnomalyScore)
	}
	if verdict.Confidence != verdict.AnomalyScore {
		t.Fatalf("fake confidence must equal the anomaly score, got %f vs %f", verdict.Confidence, verdict.AnomalyScore)
	}
	if verdict.RiskLevel == models.RiskLow {
		t.Fatalf("expected elevated risk, got %s", verdict.RiskLevel)
	}
	if verdict.BatchInfo != nil {
		t.Fatalf("fake verdicts must not carry batch info, got %+v", verdict.BatchInfo)
	}
	if len(verdict.Analysis.Flags) != 2 {
		t.Fatalf("expected two flags, got %v", verdict.Analysis.Flags)
	}
}

func TestAnalyzeOverexposedImage(t *testing.T) {
	engine := NewEngine(nil, nil)

	verdict, err := engine.Analyze(testCtx(), uniformImage(t, color.NRGBA{R: 250, G: 250, B: 250, A: 255}))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if verdict.Analysis.Brightness <= 0.9 {
		t.Fatalf("expected brightness above 0.9, got %f", verdict.Analysis.Brightness)
	}
	if verdict.IsAuthentic {
		t.Fatalf("overexposed flat image must score fake, got %+v", verdict)
	}
}

func TestAnalyzeRejectsGarbage(t *testing.T) {
	engine := NewEngine(nil, nil)

	if _, err := engine.Analyze(testCtx(), []byte("not an image")); !dErrors.HasCode(err, dErrors.CodeBadRequest) {
		t.Fatalf("expected bad request for undecodable payload, got %v", err)
	}
}

func TestBatchInfoDeterministic(t *testing.T) {
	engine := NewEngine(nil, nil)
	img := grayCheckerboard(t)

	first, err := engine.Analyze(testCtx(), img)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	second, err := engine.Analyze(testCtx(), img)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if first.BatchInfo.BatchID != second.BatchInfo.BatchID ||
		first.BatchInfo.Manufacturer != second.BatchInfo.Manufacturer {
		t.Fatalf("batch info must be deterministic per image: %+v vs %+v", first.BatchInfo, second.BatchInfo)
	}
}

func TestBatchInfoManufacturerForHighHashes(t *testing.T) {
	// Payloads whose FNV-32a sum lands in the upper half of uint32 must
	// still index the manufacturer list; the selection is unsigned
	// regardless of the platform's int width.
	var data []byte
	var sum uint32
	for i := 0; i < 4096; i++ {
		candidate := []byte(fmt.Sprintf("payload-%d", i))
		h := fnv.New32a()
		h.Write(candidate)
		if s := h.Sum32(); s >= 1<<31 {
			data, sum = candidate, s
			break
		}
	}
	if data == nil {
		t.Fatal("no candidate payload hashed into the upper half of uint32")
	}

	info := synthesizeBatchInfo(testCtx(), data)
	want := manufacturers[sum%uint32(len(manufacturers))]
	if info.Manufacturer != want {
		t.Fatalf("expected manufacturer %q, got %q", want, info.Manufacturer)
	}
}

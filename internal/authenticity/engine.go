// Package authenticity scores drug package images for tampering signals.
// The engine is a pure function of the image bytes: it decodes to a raster,
// computes brightness, sharpness, color-variance and edge-density statistics,
// and accumulates an anomaly score against fixed thresholds.
package authenticity

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"

	authmetrics "medchain/internal/authenticity/metrics"
	"medchain/internal/authenticity/models"
	dErrors "medchain/pkg/domain-errors"
	"medchain/pkg/requestcontext"
)

// Anomaly thresholds and weights. Tuned against the sample image corpus.
const (
	brightnessLow     = 0.2
	brightnessHigh    = 0.9
	brightnessWeight  = 0.3
	sharpnessFloor    = 100.0
	sharpnessWeight   = 0.4
	colorVarCeiling   = 5000.0
	colorVarWeight    = 0.3
	authenticCutoff   = 0.5
	riskHighCutoff    = 0.7
	riskMediumCutoff  = 0.4
)

var manufacturers = []string{
	"Cipla Ltd",
	"Sun Pharmaceutical",
	"Dr. Reddy's Laboratories",
	"Lupin Ltd",
}

// Engine analyzes images. Metrics and logger may be nil.
type Engine struct {
	metrics *authmetrics.Metrics
	logger  *slog.Logger
}

// NewEngine constructs the engine.
func NewEngine(m *authmetrics.Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{metrics: m, logger: logger}
}

// Analyze decodes the image and scores it. Undecodable payloads fail with a
// bad-request error.
func (e *Engine) Analyze(ctx context.Context, data []byte) (models.Verdict, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return models.Verdict{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "undecodable image")
	}

	stats := measure(img)
	analysis := models.Analysis{
		Brightness:    stats.brightness,
		Sharpness:     stats.sharpness,
		ColorVariance: stats.colorVariance,
		EdgeDensity:   stats.edgeDensity,
		Flags:         []string{},
	}

	var score float64
	if stats.brightness < brightnessLow || stats.brightness > brightnessHigh {
		score += brightnessWeight
		analysis.Flags = append(analysis.Flags, "abnormal brightness suggests re-photographed packaging")
	}
	if stats.sharpness < sharpnessFloor {
		score += sharpnessWeight
		analysis.Flags = append(analysis.Flags, "low sharpness suggests reprinted label")
	}
	if stats.colorVariance > colorVarCeiling {
		score += colorVarWeight
		analysis.Flags = append(analysis.Flags, "excessive color variance suggests ink mismatch")
	}

	verdict := models.Verdict{
		IsAuthentic:  score < authenticCutoff,
		AnomalyScore: score,
		Analysis:     analysis,
	}
	if verdict.IsAuthentic {
		verdict.Confidence = 1 - score
		verdict.BatchInfo = synthesizeBatchInfo(ctx, data)
	} else {
		verdict.Confidence = score
	}
	switch {
	case score > riskHighCutoff:
		verdict.RiskLevel = models.RiskHigh
	case score > riskMediumCutoff:
		verdict.RiskLevel = models.RiskMedium
	default:
		verdict.RiskLevel = models.RiskLow
	}

	e.metrics.IncAnalyses(verdict.IsAuthentic)
	e.logger.DebugContext(ctx, "image analyzed",
		"format", format,
		"anomaly_score", score,
		"authentic", verdict.IsAuthentic,
	)
	return verdict, nil
}

type imageStats struct {
	brightness    float64
	sharpness     float64
	colorVariance float64
	edgeDensity   float64
}

// measure computes the raster statistics. Luminance uses the BT.601 weights;
// the sharpness proxy is the variance of the horizontal luminance gradient
// and edge density its mean absolute value.
func measure(img image.Image) imageStats {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return imageStats{}
	}

	lum := make([][]float64, height)
	var sumR, sumG, sumB, sumSqR, sumSqG, sumSqB float64
	pixels := float64(width * height)

	for y := 0; y < height; y++ {
		lum[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			r16, g16, b16, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			r := float64(r16 >> 8)
			g := float64(g16 >> 8)
			b := float64(b16 >> 8)
			sumR += r
			sumG += g
			sumB += b
			sumSqR += r * r
			sumSqG += g * g
			sumSqB += b * b
			lum[y][x] = 0.299*r + 0.587*g + 0.114*b
		}
	}

	varR := sumSqR/pixels - (sumR/pixels)*(sumR/pixels)
	varG := sumSqG/pixels - (sumG/pixels)*(sumG/pixels)
	varB := sumSqB/pixels - (sumB/pixels)*(sumB/pixels)

	var lumSum float64
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			lumSum += lum[y][x]
		}
	}

	stats := imageStats{
		brightness:    lumSum / pixels / 255,
		colorVariance: (varR + varG + varB) / 3,
	}

	if width < 2 {
		return stats
	}
	var gradSum, gradSqSum, gradAbsSum float64
	gradients := float64((width - 1) * height)
	for y := 0; y < height; y++ {
		for x := 0; x < width-1; x++ {
			g := lum[y][x+1] - lum[y][x]
			gradSum += g
			gradSqSum += g * g
			if g < 0 {
				g = -g
			}
			gradAbsSum += g
		}
	}
	mean := gradSum / gradients
	stats.sharpness = gradSqSum/gradients - mean*mean
	stats.edgeDensity = gradAbsSum / gradients
	return stats
}

// synthesizeBatchInfo fabricates deterministic provenance metadata from the
// image bytes. A production deployment would query the manufacturer registry
// instead.
func synthesizeBatchInfo(ctx context.Context, data []byte) *models.BatchInfo {
	h := fnv.New32a()
	h.Write(data)
	sum := h.Sum32()

	now := requestcontext.Now(ctx)
	return &models.BatchInfo{
		BatchID:         fmt.Sprintf("MED-%08X", sum),
		Manufacturer:    manufacturers[sum%uint32(len(manufacturers))],
		ManufactureDate: now.AddDate(0, -6, 0),
		ExpiryDate:      now.AddDate(2, 0, 0),
	}
}

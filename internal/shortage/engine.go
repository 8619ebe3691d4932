// Package shortage turns stock telemetry into scored shortage predictions.
// The engine is a pure function over its inputs except for the synthetic
// history cache, which is shared per-process state.
package shortage

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	shortagemetrics "medchain/internal/shortage/metrics"
	"medchain/internal/shortage/models"
	dErrors "medchain/pkg/domain-errors"
	"medchain/pkg/requestcontext"
)

// Severity thresholds on the final probability.
const (
	criticalThreshold = 0.75
	warningThreshold  = 0.50
)

// maxProjectionDays caps the projected depletion horizon. Beyond ten years
// the date carries no information, and an uncapped value overflows
// time.Duration's nanosecond range.
const maxProjectionDays = 3650

// Engine scores shortage requests.
type Engine struct {
	cache   *HistoryCache
	metrics *shortagemetrics.Metrics
	logger  *slog.Logger
}

// NewEngine constructs the engine over a history cache. Metrics and logger
// may be nil.
func NewEngine(cache *HistoryCache, m *shortagemetrics.Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cache: cache, metrics: m, logger: logger}
}

// Predict evaluates one request. Depletion floors dominate the history-based
// score: under 3 days of stock forces the probability to at least 0.85,
// under 7 days to at least 0.60.
func (e *Engine) Predict(ctx context.Context, req models.Request) (models.Prediction, error) {
	if req.DrugName == "" {
		return models.Prediction{}, dErrors.New(dErrors.CodeBadRequest, "drug_name is required")
	}
	if req.Location == "" {
		return models.Prediction{}, dErrors.New(dErrors.CodeBadRequest, "location is required")
	}
	if req.CurrentStock < 0 {
		return models.Prediction{}, dErrors.New(dErrors.CodeBadRequest, "current_stock must not be negative")
	}
	if req.AvgDailyUsage <= 0 {
		return models.Prediction{}, dErrors.New(dErrors.CodeBadRequest, "avg_daily_usage must be positive")
	}

	history := e.cache.Get(req.DrugName, req.Location)
	probability := scoreWindow(history)

	daysUntilDepletion := req.CurrentStock / req.AvgDailyUsage
	switch {
	case daysUntilDepletion < 3:
		probability = math.Max(probability, 0.85)
	case daysUntilDepletion < 7:
		probability = math.Max(probability, 0.60)
	}

	prediction := models.Prediction{
		DrugName:            req.DrugName,
		Location:            req.Location,
		ShortageProbability: probability,
		Confidence:          math.Abs(probability-0.5) * 2,
	}

	switch {
	case probability > criticalThreshold:
		prediction.Severity = models.SeverityCritical
		prediction.RecommendedAction = fmt.Sprintf("order %d units immediately", int(req.AvgDailyUsage*14))
	case probability > warningThreshold:
		prediction.Severity = models.SeverityWarning
		prediction.RecommendedAction = fmt.Sprintf("schedule %d units within 48h", int(req.AvgDailyUsage*10))
	default:
		prediction.Severity = models.SeverityNormal
		prediction.RecommendedAction = "monitor"
	}

	if probability > warningThreshold {
		prediction.UnitsNeeded = uint64(math.Floor(req.AvgDailyUsage * 14))
		days := math.Min(daysUntilDepletion, maxProjectionDays)
		date := requestcontext.Now(ctx).Add(time.Duration(days * float64(24*time.Hour)))
		prediction.PredictedShortageDate = &date
	}

	e.metrics.IncPredictions(string(prediction.Severity))
	e.logger.DebugContext(ctx, "shortage prediction computed",
		"drug", req.DrugName,
		"location", req.Location,
		"probability", probability,
		"severity", prediction.Severity,
	)
	return prediction, nil
}

// scoreWindow maps the most recent min(7, len) history steps to a base
// probability in [0,1]. Each step contributes demand pressure from low stock,
// high usage, adverse weather and outbreak elevation.
func scoreWindow(history History) float64 {
	window := history
	if len(window) > scoringWindow {
		window = window[len(window)-scoringWindow:]
	}
	if len(window) == 0 {
		return 0
	}

	var total float64
	for _, step := range window {
		pressure := (1-step[0])*0.35 +
			step[1]*0.20 +
			step[2]*0.05 +
			(step[3]-0.8)*0.25 +
			(step[4]-1.0)*0.40
		total += pressure
	}
	return clamp01(total / float64(len(window)))
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

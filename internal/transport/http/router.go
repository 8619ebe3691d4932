// Package httptransport assembles the HTTP surface: middleware chain,
// feature routes and operational endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	platmetrics "medchain/internal/platform/metrics"
	"medchain/internal/platform/middleware"
	"medchain/pkg/platform/httputil"
)

// Registrar mounts a feature's routes on the router.
type Registrar interface {
	Register(r chi.Router)
}

// Deps carries everything the router needs. Validator and Metrics may be
// nil; Checks maps dependency names to health probes.
type Deps struct {
	Logger    *slog.Logger
	Metrics   *platmetrics.Metrics
	Validator middleware.TokenValidator
	RateLimit func(http.Handler) http.Handler
	Features  []Registrar
	Checks    map[string]func(ctx context.Context) error
}

// NewRouter wires all public endpoints behind the middleware chain.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logging(deps.Logger, deps.Metrics))
	if deps.Validator != nil {
		r.Use(middleware.Auth(deps.Validator, deps.Logger))
	}

	// Feature routes are rate limited; operational endpoints are not.
	r.Group(func(gr chi.Router) {
		if deps.RateLimit != nil {
			gr.Use(deps.RateLimit)
		}
		for _, feature := range deps.Features {
			feature.Register(gr)
		}
	})

	r.Get("/", handleBanner)
	r.Get("/health", handleHealth(deps.Checks))
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func handleBanner(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"service": "medchain",
		"status":  "running",
	})
}

// handleHealth probes each dependency with a short timeout and degrades to
// 503 when any fails.
func handleHealth(checks map[string]func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				deps[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}

		body := map[string]any{"status": "ok"}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		if len(deps) > 0 {
			body["dependencies"] = deps
		}
		httputil.WriteJSON(w, status, body)
	}
}

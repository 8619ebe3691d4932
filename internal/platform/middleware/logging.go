package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	platmetrics "medchain/internal/platform/metrics"
	"medchain/pkg/requestcontext"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging records one line per request and feeds the latency histogram.
// Metrics may be nil.
func Logging(logger *slog.Logger, m *platmetrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			ctx := r.Context()
			elapsed := time.Since(start)
			route := chi.RouteContext(ctx).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			m.Observe(r.Method, route, strconv.Itoa(rec.status), elapsed.Seconds())
			logger.InfoContext(ctx, "request handled",
				"request_id", requestcontext.RequestID(ctx),
				"method", r.Method,
				"route", route,
				"status", rec.status,
				"duration_ms", elapsed.Milliseconds(),
			)
		})
	}
}

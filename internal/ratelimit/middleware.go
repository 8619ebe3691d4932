package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"medchain/pkg/requestcontext"
)

// Middleware rejects requests over the limit with 429, keyed by client IP.
func Middleware(limiter *Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			res := limiter.Allow(ctx, clientIP(r))

			w.Header().Set("X-Ratelimit-Limit", strconv.FormatInt(res.Limit, 10))
			w.Header().Set("X-Ratelimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if res.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := int(res.RetryAfter.Seconds() + 1)
			logger.WarnContext(ctx, "request rate limited",
				"request_id", requestcontext.RequestID(ctx),
				"retry_after_s", retryAfter,
			)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limited","error_description":"too many requests"}`))
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, found := strings.Cut(xff, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

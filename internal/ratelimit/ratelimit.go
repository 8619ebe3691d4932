// Package ratelimit guards the oracle endpoints with a fixed-window request
// limiter. Buckets live in memory by default or in Redis when the process
// runs with more than one replica. A failing bucket store fails open: a
// degraded limiter must not take the API down with it.
package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// BucketStore counts requests per key within a fixed window. Incr returns
// the count after this request and the remaining window.
type BucketStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Result is the outcome of one limiter check.
type Result struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter applies one limit across all keys.
type Limiter struct {
	store  BucketStore
	limit  int64
	window time.Duration
	logger *slog.Logger
}

// NewLimiter allows limit requests per window per key.
func NewLimiter(store BucketStore, limit int64, window time.Duration, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{store: store, limit: limit, window: window, logger: logger}
}

// Allow checks and consumes one request for key.
func (l *Limiter) Allow(ctx context.Context, key string) Result {
	count, remaining, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		l.logger.WarnContext(ctx, "rate limit store unavailable, failing open",
			"key", key,
			"error", err,
		)
		return Result{Allowed: true, Limit: l.limit}
	}

	res := Result{
		Allowed:   count <= l.limit,
		Limit:     l.limit,
		Remaining: max(l.limit-count, 0),
	}
	if !res.Allowed {
		res.RetryAfter = remaining
	}
	return res
}

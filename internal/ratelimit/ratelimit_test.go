package ratelimit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestLimiterAllowsUnderLimit(t *testing.T) {
	limiter := NewLimiter(NewMemoryBuckets(), 3, time.Minute, testLogger())

	for i := 0; i < 3; i++ {
		if res := limiter.Allow(context.Background(), "10.0.0.1"); !res.Allowed {
			t.Fatalf("request %d must be allowed", i+1)
		}
	}
	res := limiter.Allow(context.Background(), "10.0.0.1")
	if res.Allowed {
		t.Fatal("fourth request must be rejected")
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("rejection must carry a retry-after, got %v", res.RetryAfter)
	}

	// Distinct keys count independently.
	if res := limiter.Allow(context.Background(), "10.0.0.2"); !res.Allowed {
		t.Fatal("other key must have its own bucket")
	}
}

func TestLimiterWindowResets(t *testing.T) {
	buckets := NewMemoryBuckets()
	now := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)
	buckets.now = func() time.Time { return now }
	limiter := NewLimiter(buckets, 1, time.Minute, testLogger())

	if res := limiter.Allow(context.Background(), "k"); !res.Allowed {
		t.Fatal("first request must pass")
	}
	if res := limiter.Allow(context.Background(), "k"); res.Allowed {
		t.Fatal("second request in the window must be rejected")
	}

	now = now.Add(61 * time.Second)
	if res := limiter.Allow(context.Background(), "k"); !res.Allowed {
		t.Fatal("request after the window must pass")
	}
}

type brokenBuckets struct{}

func (brokenBuckets) Incr(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("connection refused")
}

func TestLimiterFailsOpen(t *testing.T) {
	limiter := NewLimiter(brokenBuckets{}, 1, time.Minute, testLogger())

	if res := limiter.Allow(context.Background(), "k"); !res.Allowed {
		t.Fatal("store failure must fail open")
	}
}

func TestMiddleware(t *testing.T) {
	limiter := NewLimiter(NewMemoryBuckets(), 1, time.Minute, testLogger())
	handler := Middleware(limiter, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/oracle/shortage", nil)
	req.RemoteAddr = "10.0.0.9:4412"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request must be limited, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("limited response must carry Retry-After")
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:9000"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	if got := clientIP(req); got != "203.0.113.7" {
		t.Fatalf("expected forwarded ip, got %q", got)
	}
}

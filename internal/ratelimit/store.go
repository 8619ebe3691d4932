package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryBuckets is the single-process bucket store.
type MemoryBuckets struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	count   int64
	resetAt time.Time
}

// NewMemoryBuckets returns an empty store.
func NewMemoryBuckets() *MemoryBuckets {
	return &MemoryBuckets{buckets: make(map[string]*bucket), now: time.Now}
}

func (s *MemoryBuckets) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b, ok := s.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(window)}
		s.buckets[key] = b
	}
	b.count++
	return b.count, b.resetAt.Sub(now), nil
}

// RedisBuckets shares buckets across replicas. The window TTL is set only
// when the key is created, so the window is fixed rather than sliding.
type RedisBuckets struct {
	client *redis.Client
	prefix string
}

// NewRedisBuckets wraps an existing Redis client.
func NewRedisBuckets(client *redis.Client, prefix string) *RedisBuckets {
	return &RedisBuckets{client: client, prefix: prefix}
}

func (s *RedisBuckets) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	full := s.prefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, full)
	pipe.ExpireNX(ctx, full, window)
	ttl := pipe.TTL(ctx, full)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("incr %s: %w", full, err)
	}
	return incr.Val(), ttl.Val(), nil
}

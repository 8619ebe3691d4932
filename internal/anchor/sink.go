package anchor

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"

	"medchain/pkg/platform/sentinel"
)

// ObjectSink persists a raw attestation payload under a key and returns a
// location the payload can be fetched from. Implementations must be
// write-once: anchored payloads are immutable.
type ObjectSink interface {
	Put(ctx context.Context, key string, payload []byte) (string, error)
}

// S3Sink writes payloads to an S3-compatible bucket.
type S3Sink struct {
	client *minio.Client
	bucket string
}

// NewS3Sink wraps an existing minio client.
func NewS3Sink(client *minio.Client, bucket string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket}
}

func (s *S3Sink) Put(ctx context.Context, key string, payload []byte) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return fmt.Sprintf("%s/%s/%s", s.client.EndpointURL(), s.bucket, key), nil
}

// RedisSink writes payloads as write-once Redis keys via SETNX.
type RedisSink struct {
	client *redis.Client
	prefix string
}

// NewRedisSink wraps an existing Redis client. Keys are stored under prefix.
func NewRedisSink(client *redis.Client, prefix string) *RedisSink {
	return &RedisSink{client: client, prefix: prefix}
}

func (s *RedisSink) Put(ctx context.Context, key string, payload []byte) (string, error) {
	full := s.prefix + key
	set, err := s.client.SetNX(ctx, full, payload, 0).Result()
	if err != nil {
		return "", fmt.Errorf("setnx %s: %w", full, err)
	}
	if !set {
		return "", fmt.Errorf("setnx %s: %w", full, sentinel.ErrConflict)
	}
	return "redis://" + full, nil
}

// MemorySink keeps payloads in-process. Used in tests and demo mode.
type MemorySink struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{objects: make(map[string][]byte)}
}

func (s *MemorySink) Put(_ context.Context, key string, payload []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objects[key]; exists {
		return "", fmt.Errorf("put %s: %w", key, sentinel.ErrConflict)
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	s.objects[key] = cp
	return "memory://" + key, nil
}

// Object returns a stored payload.
func (s *MemorySink) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.objects[key]
	return payload, ok
}

// Package events fans committed ledger events out to observers. The ledger
// publishes inside its commit critical section, so sinks see events in total
// order and must not block: anything slow hands off asynchronously.
package events

import (
	"context"
	"log/slog"
	"sync"

	"medchain/internal/registry/models"
)

// Sink receives committed domain events in ledger order.
type Sink interface {
	Publish(ctx context.Context, event models.Event)
}

// LogSink writes every event to the structured log.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink constructs a sink that logs events at info level.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(ctx context.Context, event models.Event) {
	s.logger.InfoContext(ctx, "ledger event",
		"kind", string(event.Kind),
		"height", event.Height,
		"timestamp", event.Timestamp,
	)
}

// MemorySink records events for tests.
type MemorySink struct {
	mu     sync.Mutex
	events []models.Event
}

// NewMemorySink constructs an empty recording sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Publish(_ context.Context, event models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Events returns a copy of everything published so far.
func (s *MemorySink) Events() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Event{}, s.events...)
}

// MultiSink publishes to each sink in order.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink composes sinks; nil entries are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &MultiSink{sinks: kept}
}

func (s *MultiSink) Publish(ctx context.Context, event models.Event) {
	for _, sink := range s.sinks {
		sink.Publish(ctx, event)
	}
}

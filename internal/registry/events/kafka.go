package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"medchain/internal/registry/models"
)

// KafkaSink streams ledger events to a Kafka topic for downstream indexers
// and dashboards. Produce is asynchronous: the commit critical section never
// waits on the broker, and delivery failures are logged, not surfaced.
type KafkaSink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaSink connects to the brokers and ensures the topic exists.
func NewKafkaSink(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}

	// Idempotent topic creation; an already-exists response is fine.
	adm := kadm.NewClient(client)
	if _, err := adm.CreateTopics(ctx, 1, 1, nil, topic); err != nil {
		logger.WarnContext(ctx, "kafka topic creation failed, continuing",
			"topic", topic,
			"error", err,
		)
	}

	return &KafkaSink{client: client, topic: topic, logger: logger}, nil
}

func (s *KafkaSink) Publish(ctx context.Context, event models.Event) {
	value, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorContext(ctx, "encode ledger event for kafka",
			"kind", string(event.Kind),
			"error", err,
		)
		return
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Kind),
		Value: value,
	}
	s.client.Produce(context.WithoutCancel(ctx), record, func(_ *kgo.Record, err error) {
		if err != nil {
			s.logger.Error("kafka produce failed",
				"kind", string(event.Kind),
				"height", event.Height,
				"error", err,
			)
		}
	})
}

// Close flushes pending records and releases the client.
func (s *KafkaSink) Close(ctx context.Context) error {
	if err := s.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	s.client.Close()
	return nil
}

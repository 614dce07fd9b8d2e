package producers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/partnerhub/token-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

type NotificationProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// Creates a new notification producer and ensures the topic exists
func NewNotificationProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*NotificationProducer, error) {
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("kafka notification topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for notification producer: %w", err)
	}
	defer conn.Close()

	err = ensureTopic(conn, cfg.NotificationTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure notification topic %s exists: %w", cfg.NotificationTopic, err)
	}

	// Synchronous writes: the dispatcher needs the error to drive its
	// retry counter, so async fire-and-forget is not an option here.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.NotificationTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &NotificationProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.NotificationTopic,
	}, nil
}

func (p *NotificationProducer) Publish(ctx context.Context, key string, value []byte) error {
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish notification message",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published notification message",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *NotificationProducer) Close() error {
	p.logger.Info("Closing notification Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}

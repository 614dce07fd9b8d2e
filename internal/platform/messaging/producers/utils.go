package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const partitionReadAttempts = 5

// ensureTopic makes sure a topic exists before a writer binds to it.
// Partition reads right after broker startup are flaky, so the probe retries
// before concluding the topic is missing.
func ensureTopic(conn *kafka.Conn, topic string, numPartitions, replicationFactor int, log *slog.Logger) error {
	var lastErr error
	for i := 0; i < partitionReadAttempts; i++ {
		partitions, err := conn.ReadPartitions(topic)
		if err == nil && len(partitions) > 0 {
			log.Info("Kafka topic already exists", "topic", topic)
			return nil
		}
		lastErr = err
		if i < partitionReadAttempts-1 {
			log.Warn("Partition read failed, retrying", "topic", topic, "attempt", i+1, "error", err)
			time.Sleep(2 * time.Second)
		}
	}

	log.Info("Kafka topic not found, creating", "topic", topic, "last_read_error", lastErr)
	if numPartitions <= 0 {
		numPartitions = 1
	}
	if replicationFactor <= 0 {
		replicationFactor = 1
	}
	if err := conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	}); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic, err)
	}
	log.Info("Created Kafka topic", "topic", topic)
	return nil
}

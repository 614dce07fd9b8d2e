// Package dispatcher drains the notification outbox and publishes events to
// the notification bus. It runs as its own binary so a slow broker never
// sits on the ledger API's request path.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/partnerhub/token-ledger/internal/domain/notification"
	"github.com/partnerhub/token-ledger/internal/platform/messaging/producers"
)

// Event is the wire envelope written to the notification topic. Downstream
// notification services fan it out to the listed recipients.
type Event struct {
	ID         string          `json:"id"`
	Recipients []string        `json:"recipients"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// EventPublisher publishes one outbox message to the notification bus
type EventPublisher interface {
	PublishEvent(ctx context.Context, msg *notification.Message) error
}

// EventPublisherImpl implements EventPublisher
type EventPublisherImpl struct {
	outboxRepo       notification.Repository
	producer         producers.MessagePublisher
	dlqProducer      producers.DeadLetterPublisher
	logger           *slog.Logger
	maxRetryAttempts int
}

// NewEventPublisher creates a new publisher. dlqProducer may be nil when the
// dead-letter queue is disabled.
func NewEventPublisher(
	outboxRepo notification.Repository,
	producer producers.MessagePublisher,
	dlqProducer producers.DeadLetterPublisher,
	maxRetryAttempts int,
	logger *slog.Logger,
) EventPublisher {
	return &EventPublisherImpl{
		outboxRepo:       outboxRepo,
		producer:         producer,
		dlqProducer:      dlqProducer,
		logger:           logger,
		maxRetryAttempts: maxRetryAttempts,
	}
}

// PublishEvent publishes a message and settles its outbox status. A publish
// failure bumps the retry counter; the attempt that exhausts the budget also
// forwards the message to the DLQ.
func (p *EventPublisherImpl) PublishEvent(ctx context.Context, msg *notification.Message) error {
	recipients := make([]string, len(msg.Recipients))
	for i, r := range msg.Recipients {
		recipients[i] = r.String()
	}

	event := Event{
		ID:         msg.ID.String(),
		Recipients: recipients,
		EventType:  string(msg.EventType),
		Payload:    json.RawMessage(msg.Payload),
		EnqueuedAt: msg.CreatedAt,
	}

	body, err := json.Marshal(event)
	if err != nil {
		// Unmarshalable event means a corrupt row, retrying cannot help.
		p.logger.Error("Failed to marshal notification event, parking message",
			"outbox_id", msg.ID.String(), "event_type", string(msg.EventType), "error", err,
		)
		if errMark := p.outboxRepo.MarkFailed(ctx, msg.ID, 0); errMark != nil {
			p.logger.Error("Failed to park corrupt outbox message", "outbox_id", msg.ID.String(), "error", errMark)
		}
		return fmt.Errorf("marshal event for outbox %s failed: %w", msg.ID.String(), err)
	}

	if err := p.producer.Publish(ctx, msg.ID.String(), body); err != nil {
		p.logger.Error("Failed to publish notification event",
			"outbox_id", msg.ID.String(), "event_type", string(msg.EventType), "retry_count", msg.RetryCount, "error", err,
		)

		if errMark := p.outboxRepo.MarkFailed(ctx, msg.ID, p.maxRetryAttempts); errMark != nil {
			p.logger.Error("Failed to record publish failure for outbox message", "outbox_id", msg.ID.String(), "error", errMark)
			return fmt.Errorf("publish and failure bookkeeping both failed for outbox %s: %w", msg.ID.String(), errMark)
		}

		if msg.RetryCount+1 >= p.maxRetryAttempts {
			p.logger.Warn("Max retry attempts reached for outbox message, forwarding to DLQ",
				"outbox_id", msg.ID.String(), "event_type", string(msg.EventType), "attempts_made", msg.RetryCount+1,
			)
			if p.dlqProducer != nil {
				if errDLQ := p.dlqProducer.PublishToDLQ(ctx, msg.ID.String(), body, err.Error()); errDLQ != nil {
					p.logger.Error("Failed to publish exhausted outbox message to DLQ", "outbox_id", msg.ID.String(), "error", errDLQ)
				}
			}
		}
		return fmt.Errorf("publish event for outbox %s failed: %w", msg.ID.String(), err)
	}

	if err := p.outboxRepo.MarkPublished(ctx, msg.ID); err != nil {
		// The event went out; a stale PENDING row means a duplicate delivery
		// on the next tick, which the envelope ID lets consumers dedupe.
		p.logger.Error("Published event but failed to mark outbox message as PUBLISHED",
			"outbox_id", msg.ID.String(), "error", err,
		)
		return fmt.Errorf("event for outbox %s published but status update failed: %w", msg.ID.String(), err)
	}

	p.logger.Info("Notification event published", "outbox_id", msg.ID.String(), "event_type", string(msg.EventType))
	return nil
}

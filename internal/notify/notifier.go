// Package notify implements notification delivery for the ledger: an
// outbox-backed Notifier on the enqueue side and a Kafka publishing
// dispatcher on the delivery side. Delivery is fire-and-forget from the
// ledger's point of view; nothing here can roll a settlement back.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/partnerhub/token-ledger/internal/domain/notification"
	"github.com/partnerhub/token-ledger/internal/ledger/service"
)

// OutboxNotifier enqueues notification events into the outbox table.
// Enqueue failures are logged and swallowed.
type OutboxNotifier struct {
	outboxRepo notification.Repository
	logger     *slog.Logger
}

// NewOutboxNotifier creates a new outbox-backed notifier
func NewOutboxNotifier(logger *slog.Logger, outboxRepo notification.Repository) *OutboxNotifier {
	return &OutboxNotifier{
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

var _ service.Notifier = (*OutboxNotifier)(nil)

// Notify enqueues one notification event for the dispatcher to deliver
func (n *OutboxNotifier) Notify(ctx context.Context, recipients []uuid.UUID, eventType notification.EventType, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("Failed to marshal notification payload", "event_type", string(eventType), "error", err)
		return
	}

	msg := notification.NewMessage(recipients, eventType, body)
	if err := n.outboxRepo.Create(ctx, msg); err != nil {
		n.logger.Error("Failed to enqueue notification",
			"event_type", string(eventType),
			"recipients", len(recipients),
			"error", err,
		)
		return
	}

	n.logger.Debug("Notification enqueued", "id", msg.ID.String(), "event_type", string(eventType))
}

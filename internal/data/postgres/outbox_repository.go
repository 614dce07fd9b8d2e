package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/partnerhub/token-ledger/internal/domain/notification"
	"github.com/partnerhub/token-ledger/internal/platform/persistence"
)

// OutboxRepository implements the notification.Repository interface for PostgreSQL
type OutboxRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewOutboxRepository creates a new PostgreSQL notification outbox repository
func NewOutboxRepository(logger *slog.Logger, db *persistence.PostgresDB) notification.Repository {
	return &OutboxRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *OutboxRepository) WithTx(tx pgx.Tx) notification.Repository {
	return &OutboxRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new outbox message in pending status.
// It will be picked up by the dispatcher's poller.
func (r *OutboxRepository) Create(ctx context.Context, msg *notification.Message) error {
	query := `
		INSERT INTO notification_outbox (id, recipients, event_type, payload, status, retry_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.querier.Exec(ctx, query,
		msg.ID,
		recipientsToStrings(msg.Recipients),
		msg.EventType,
		msg.Payload,
		msg.Status,
		msg.RetryCount,
		msg.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create outbox message", "id", msg.ID.String(), "error", err)
		return fmt.Errorf("failed to create outbox message: %w", err)
	}

	return nil
}

// FetchPending retrieves a batch of pending messages oldest first. SKIP
// LOCKED skips rows held by in-flight transactions, but outside a wrapping
// transaction the locks end with the statement: delivery is at-least-once
// and consumers dedupe on the envelope ID.
func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]*notification.Message, error) {
	query := `
		SELECT id, recipients, event_type, payload, status, retry_count, created_at, processed_at
		FROM notification_outbox
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`

	rows, err := r.querier.Query(ctx, query, notification.StatusPending, limit)
	if err != nil {
		r.logger.Error("Failed to fetch pending outbox messages", "error", err)
		return nil, fmt.Errorf("failed to fetch pending outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*notification.Message
	for rows.Next() {
		var msg notification.Message
		var recipients []string
		err := rows.Scan(
			&msg.ID,
			&recipients,
			&msg.EventType,
			&msg.Payload,
			&msg.Status,
			&msg.RetryCount,
			&msg.CreatedAt,
			&msg.ProcessedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan outbox message", "error", err)
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		msg.Recipients, err = recipientsFromStrings(recipients)
		if err != nil {
			return nil, fmt.Errorf("failed to parse outbox recipients: %w", err)
		}
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over outbox messages", "error", err)
		return nil, fmt.Errorf("error iterating over outbox messages: %w", err)
	}

	return messages, nil
}

// MarkPublished records successful delivery to the notification bus
func (r *OutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE notification_outbox
		SET status = $1, processed_at = $2
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, notification.StatusPublished, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to mark outbox message published", "id", id.String(), "error", err)
		return fmt.Errorf("failed to mark outbox message published: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrOutboxMessageNotFound{ID: id}
	}

	return nil
}

// MarkFailed increments the retry counter; once maxRetries is reached the
// message is parked in FAILED_TO_PUBLISH for the dead-letter path.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, maxRetries int) error {
	query := `
		UPDATE notification_outbox
		SET retry_count = retry_count + 1,
		    processed_at = $1,
		    status = CASE WHEN retry_count + 1 >= $2 THEN $3::text ELSE status END
		WHERE id = $4
	`

	result, err := r.querier.Exec(ctx, query, time.Now(), maxRetries, notification.StatusFailedToPublish, id)
	if err != nil {
		r.logger.Error("Failed to mark outbox message failed", "id", id.String(), "error", err)
		return fmt.Errorf("failed to mark outbox message failed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrOutboxMessageNotFound{ID: id}
	}

	return nil
}

// recipientsToStrings flattens recipient IDs to a text[] column value
func recipientsToStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func recipientsFromStrings(raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, len(raw))
	for i, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

// ErrOutboxMessageNotFound indicates a missing outbox message
type ErrOutboxMessageNotFound struct {
	ID uuid.UUID
}

func (e ErrOutboxMessageNotFound) Error() string {
	return "outbox message not found: " + e.ID.String()
}

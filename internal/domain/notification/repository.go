package notification

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages notification outbox persistence
type Repository interface {
	Create(ctx context.Context, msg *Message) error

	// FetchPending returns up to limit pending messages, oldest first,
	// locking them against concurrent pollers (FOR UPDATE SKIP LOCKED).
	FetchPending(ctx context.Context, limit int) ([]*Message, error)

	MarkPublished(ctx context.Context, id uuid.UUID) error

	// MarkFailed increments the retry counter; once maxRetries is reached
	// the message is parked in FAILED_TO_PUBLISH for the dead-letter path.
	MarkFailed(ctx context.Context, id uuid.UUID, maxRetries int) error

	WithTx(tx pgx.Tx) Repository
}

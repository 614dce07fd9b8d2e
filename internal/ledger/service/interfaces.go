package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/partnerhub/token-ledger/internal/domain/notification"
	"github.com/partnerhub/token-ledger/internal/domain/transaction"
)

// TxRunner runs a function inside one database transaction, committing on
// nil and rolling back on error. Satisfied by persistence.PostgresDB.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// TransferService orchestrates the three-step peer-transfer protocol:
// submit, admin review, receiver confirm. Every state-changing call
// re-validates its precondition under row locks inside one database
// transaction, so concurrent callers racing on the same transfer produce
// exactly one winner.
type TransferService interface {
	// CreateTransfer submits a peer transfer in PENDING_ADMIN_APPROVAL.
	// The sender's gross balance must cover the amount; no balance is
	// mutated until the receiver confirms.
	CreateTransfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount int64, reason string, relatedProjectID *uuid.UUID) (*transaction.Transaction, error)

	// AdminReviewTransfer approves or rejects a pending transfer. Fails
	// InvalidState unless the transfer is in PENDING_ADMIN_APPROVAL.
	AdminReviewTransfer(ctx context.Context, transactionID, adminID uuid.UUID, approve bool, comment string) (*transaction.Transaction, error)

	// ReceiverConfirm accepts or declines an approved transfer. Only the
	// recorded receiver may call. Acceptance settles both balances
	// atomically; a second call fails InvalidState.
	ReceiverConfirm(ctx context.Context, transactionID, receiverID uuid.UUID, accept bool, comment string) (*transaction.Transaction, error)

	// CancelTransfer withdraws a transfer still awaiting admin review.
	// Only the recorded initiator may call.
	CancelTransfer(ctx context.Context, transactionID, userID uuid.UUID, reason string) (*transaction.Transaction, error)
}

// SettlementService performs single-step, admin-authorized settlements that
// complete immediately
type SettlementService interface {
	// AdminGrant credits a user and records a completed ADMIN_GRANT row
	AdminGrant(ctx context.Context, adminID, toUserID uuid.UUID, amount int64, reason string, relatedProjectID *uuid.UUID) (*transaction.Transaction, error)

	// AdminDeduct debits a user and records a completed ADMIN_DEDUCT row.
	// Fails InsufficientBalance under the account lock.
	AdminDeduct(ctx context.Context, adminID, fromUserID uuid.UUID, amount int64, reason string, relatedProjectID *uuid.UUID) (*transaction.Transaction, error)

	// DistributeDividend credits every recipient of a project distribution
	// batch in one database transaction. A failure anywhere aborts the
	// whole batch.
	DistributeDividend(ctx context.Context, adminID, projectID uuid.UUID, distributions []Distribution, reason string) ([]*transaction.Transaction, error)

	// SettleReward is the primitive other platform modules settle
	// reward-style credits through; grant mechanics, REWARD direction,
	// no admin actor.
	SettleReward(ctx context.Context, sourceModule string, toUserID uuid.UUID, amount int64, reason string, relatedProjectID *uuid.UUID) (*transaction.Transaction, error)
}

// Distribution is one recipient's share of a dividend batch
type Distribution struct {
	UserID uuid.UUID
	Amount int64
	Note   string
}

// QueryService is the read-only aggregation layer. It mutates nothing and
// only ever observes committed state.
type QueryService interface {
	// GetAccount returns the balance plus the frozen/available projection
	GetAccount(ctx context.Context, userID uuid.UUID) (*AccountView, error)

	GetTransaction(ctx context.Context, transactionID uuid.UUID) (*transaction.Transaction, error)

	// ListTransactions returns a filtered page plus the total match count
	ListTransactions(ctx context.Context, filter transaction.Filter, page, perPage int) ([]*transaction.Transaction, int64, error)

	GetGlobalStats(ctx context.Context) (*GlobalStats, error)
}

// AccountView is the account projection returned to callers. Frozen is the
// sum of the user's own transfers awaiting admin approval; Available is
// Balance minus Frozen. Both are computed at read time, never stored.
type AccountView struct {
	UserID        uuid.UUID `json:"user_id"`
	Balance       int64     `json:"balance"`
	InitialAmount int64     `json:"initial_amount"`
	Frozen        int64     `json:"frozen"`
	Available     int64     `json:"available"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// GlobalStats aggregates platform-wide ledger totals
type GlobalStats struct {
	Totals       transaction.DirectionTotals `json:"completed_totals"`
	Counts       transaction.StatusCounts    `json:"status_counts"`
	TotalBalance int64                       `json:"total_balance"`
	TotalInitial int64                       `json:"total_initial_amount"`
	GeneratedAt  time.Time                   `json:"generated_at"`
}

// Notifier delivers fire-and-forget notifications. Implementations must
// never propagate failures into the calling settlement path.
type Notifier interface {
	Notify(ctx context.Context, recipients []uuid.UUID, eventType notification.EventType, payload any)
}

package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Filter is the explicit query-parameter struct for transaction listings.
// Nil/zero fields are absent; the repository maps present fields to SQL
// clauses. No untyped maps cross this boundary.
type Filter struct {
	ParticipantID    *uuid.UUID // matches either party of the transaction
	Direction        *Direction
	Status           *Status
	RelatedProjectID *uuid.UUID
	CreatedFrom      *time.Time
	CreatedTo        *time.Time
}

// Transition carries the mutable decision fields of one status change.
// Everything else on a transaction row is immutable after insert.
type Transition struct {
	Status          Status
	AdminUserID     *uuid.UUID
	AdminComment    *string
	ReceiverComment *string
	CompletedAt     *time.Time
}

// DirectionTotals holds the sum of completed amounts per direction
type DirectionTotals struct {
	Transfers int64 `json:"transfers"`
	Grants    int64 `json:"grants"`
	Deducts   int64 `json:"deducts"`
	Dividends int64 `json:"dividends"`
	Rewards   int64 `json:"rewards"`
}

// StatusCounts holds transaction counts per lifecycle status
type StatusCounts struct {
	PendingAdminApproval   int64 `json:"pending_admin_approval"`
	PendingReceiverConfirm int64 `json:"pending_receiver_confirm"`
	Completed              int64 `json:"completed"`
	Rejected               int64 `json:"rejected"`
	Cancelled              int64 `json:"cancelled"`
}

// Repository manages ledger transaction persistence. Rows are append-only;
// UpdateTransition is the only mutation and touches decision fields only.
type Repository interface {
	Create(ctx context.Context, tx *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// LockByID acquires a pessimistic row lock on the transaction so that
	// concurrent transitions on the same row serialize; the losing caller
	// observes the winner's status and fails its precondition check.
	LockByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// UpdateTransition applies a status change guarded by the expected
	// current status; returns ErrTransitionConflict when the row moved on.
	UpdateTransition(ctx context.Context, id uuid.UUID, expected Status, change Transition) error

	// FrozenAmount returns the sum of the user's own TRANSFER amounts in
	// PENDING_ADMIN_APPROVAL. Available balance = balance - frozen.
	FrozenAmount(ctx context.Context, userID uuid.UUID) (int64, error)

	List(ctx context.Context, filter Filter, limit, offset int) ([]*Transaction, error)
	Count(ctx context.Context, filter Filter) (int64, error)

	CompletedTotals(ctx context.Context) (*DirectionTotals, error)
	CountsByStatus(ctx context.Context) (*StatusCounts, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrTransitionConflict indicates the guarded status update matched no row:
// a concurrent transition won the race
type ErrTransitionConflict struct {
	TransactionID uuid.UUID
}

func (e ErrTransitionConflict) Error() string {
	return "concurrent transition detected for transaction: " + e.TransactionID.String()
}

package account

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines account persistence operations
type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Account, error)
	Update(ctx context.Context, account *Account) error

	// LockForUpdate acquires a pessimistic row lock for settlement processing.
	// Balance checks performed after this call hold until commit.
	LockForUpdate(ctx context.Context, userID uuid.UUID) (*Account, error)

	// TotalBalances returns the sum of balances and initial amounts across
	// all accounts, for the statistics layer.
	TotalBalances(ctx context.Context) (balance int64, initial int64, err error)

	WithTx(tx pgx.Tx) Repository
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	UserID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for account: " + e.UserID.String()
}

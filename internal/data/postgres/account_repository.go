// Package postgres provides PostgreSQL implementations of the domain
// repositories. It handles all database operations while maintaining
// transaction safety and proper error handling for the token ledger.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/partnerhub/token-ledger/internal/domain/account"
	"github.com/partnerhub/token-ledger/internal/domain/ledgererr"
	"github.com/partnerhub/token-ledger/internal/platform/persistence"
)

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) account.Repository {
	return &AccountRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic
// operations across multiple repository calls
func (r *AccountRepository) WithTx(tx pgx.Tx) account.Repository {
	return &AccountRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new account. Called from the onboarding flow, never from
// ledger settlement paths.
func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	query := `
		INSERT INTO accounts (user_id, balance, initial_amount, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.querier.Exec(ctx, query,
		acc.UserID,
		acc.Balance,
		acc.InitialAmount,
		acc.Version,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create account", "error", err)
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByUserID retrieves an account by the owning user's ID
func (r *AccountRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*account.Account, error) {
	query := `
		SELECT user_id, balance, initial_amount, version, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
	`

	var acc account.Account
	err := r.querier.QueryRow(ctx, query, userID).Scan(
		&acc.UserID,
		&acc.Balance,
		&acc.InitialAmount,
		&acc.Version,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledgererr.NotFound{Resource: "account", ID: userID.String()}
		}
		r.logger.Error("Failed to get account", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &acc, nil
}

// Update persists an account's balance with optimistic locking on the
// version column. The caller is expected to hold the FOR UPDATE row lock
// already; the version guard is a second line of defense.
func (r *AccountRepository) Update(ctx context.Context, acc *account.Account) error {
	query := `
		UPDATE accounts
		SET balance = $1, version = $2, updated_at = $3
		WHERE user_id = $4 AND version = $5
	`

	result, err := r.querier.Exec(ctx, query,
		acc.Balance,
		acc.Version,
		acc.UpdatedAt,
		acc.UserID,
		acc.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update account", "user_id", acc.UserID.String(), "error", err)
		return fmt.Errorf("failed to update account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrConcurrentModification{UserID: acc.UserID}
	}

	return nil
}

// LockForUpdate obtains a pessimistic lock on the account and returns its
// current state. Must be used within a transaction; balance checks made on
// the returned state hold until commit.
func (r *AccountRepository) LockForUpdate(ctx context.Context, userID uuid.UUID) (*account.Account, error) {
	query := `
		SELECT user_id, balance, initial_amount, version, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
		FOR UPDATE
	`

	var acc account.Account
	err := r.querier.QueryRow(ctx, query, userID).Scan(
		&acc.UserID,
		&acc.Balance,
		&acc.InitialAmount,
		&acc.Version,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledgererr.NotFound{Resource: "account", ID: userID.String()}
		}
		r.logger.Error("Failed to lock account for update", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to lock account for update: %w", err)
	}

	return &acc, nil
}

// TotalBalances returns platform-wide balance sums for the statistics layer
func (r *AccountRepository) TotalBalances(ctx context.Context) (int64, int64, error) {
	query := `
		SELECT COALESCE(SUM(balance), 0), COALESCE(SUM(initial_amount), 0)
		FROM accounts
	`

	var balance, initial int64
	if err := r.querier.QueryRow(ctx, query).Scan(&balance, &initial); err != nil {
		r.logger.Error("Failed to sum account balances", "error", err)
		return 0, 0, fmt.Errorf("failed to sum account balances: %w", err)
	}

	return balance, initial, nil
}

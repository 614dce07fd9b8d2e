package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/partnerhub/token-ledger/internal/domain/ledgererr"
	"github.com/partnerhub/token-ledger/internal/domain/transaction"
	"github.com/partnerhub/token-ledger/internal/platform/persistence"
)

const transactionColumns = `id, from_user_id, to_user_id, amount, direction, status, reason,
		admin_user_id, admin_comment, receiver_comment, related_project_id, created_at, completed_at`

// TransactionRepository implements the transaction.Repository interface for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL transaction repository
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) transaction.Repository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so a ledger row write and
// its paired balance write commit as one unit
func (r *TransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create appends a new transaction row to the ledger
func (r *TransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.querier.Exec(ctx, query,
		t.ID,
		t.FromUserID,
		t.ToUserID,
		t.Amount,
		t.Direction,
		t.Status,
		t.Reason,
		t.AdminUserID,
		t.AdminComment,
		t.ReceiverComment,
		t.RelatedProjectID,
		t.CreatedAt,
		t.CompletedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create transaction", "transaction_id", t.ID.String(), "error", err)
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

func scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	var t transaction.Transaction
	err := row.Scan(
		&t.ID,
		&t.FromUserID,
		&t.ToUserID,
		&t.Amount,
		&t.Direction,
		&t.Status,
		&t.Reason,
		&t.AdminUserID,
		&t.AdminComment,
		&t.ReceiverComment,
		&t.RelatedProjectID,
		&t.CreatedAt,
		&t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByID retrieves a transaction by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = $1
	`

	t, err := scanTransaction(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledgererr.NotFound{Resource: "transaction", ID: id.String()}
		}
		r.logger.Error("Failed to get transaction", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return t, nil
}

// LockByID obtains a pessimistic lock on the transaction row. Concurrent
// transitions on the same row serialize here; whichever caller loses the
// race observes the winner's status after acquiring the lock.
func (r *TransactionRepository) LockByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = $1
		FOR UPDATE
	`

	t, err := scanTransaction(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledgererr.NotFound{Resource: "transaction", ID: id.String()}
		}
		r.logger.Error("Failed to lock transaction for update", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock transaction for update: %w", err)
	}

	return t, nil
}

// UpdateTransition applies a status change guarded by the expected current
// status. Amount, parties and direction are never touched. A zero-row result
// means a concurrent transition won the race.
func (r *TransactionRepository) UpdateTransition(ctx context.Context, id uuid.UUID, expected transaction.Status, change transaction.Transition) error {
	query := `
		UPDATE transactions
		SET status = $1,
		    admin_user_id = COALESCE($2, admin_user_id),
		    admin_comment = COALESCE($3, admin_comment),
		    receiver_comment = COALESCE($4, receiver_comment),
		    completed_at = COALESCE($5, completed_at)
		WHERE id = $6 AND status = $7
	`

	result, err := r.querier.Exec(ctx, query,
		change.Status,
		change.AdminUserID,
		change.AdminComment,
		change.ReceiverComment,
		change.CompletedAt,
		id,
		expected,
	)
	if err != nil {
		r.logger.Error("Failed to update transaction status", "id", id.String(), "error", err)
		return fmt.Errorf("failed to update transaction status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return transaction.ErrTransitionConflict{TransactionID: id}
	}

	return nil
}

// FrozenAmount sums the user's own TRANSFER amounts awaiting admin approval.
// These funds are logically frozen without any balance mutation.
func (r *TransactionRepository) FrozenAmount(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE from_user_id = $1 AND direction = $2 AND status = $3
	`

	var frozen int64
	err := r.querier.QueryRow(ctx, query, userID, transaction.DirectionTransfer, transaction.StatusPendingAdminApproval).Scan(&frozen)
	if err != nil {
		r.logger.Error("Failed to compute frozen amount", "user_id", userID.String(), "error", err)
		return 0, fmt.Errorf("failed to compute frozen amount: %w", err)
	}

	return frozen, nil
}

// buildFilterClauses maps present filter fields to SQL clauses with
// positional arguments. Absent fields contribute nothing.
func buildFilterClauses(filter transaction.Filter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.ParticipantID != nil {
		p := arg(*filter.ParticipantID)
		clauses = append(clauses, "(from_user_id = "+p+" OR to_user_id = "+p+")")
	}
	if filter.Direction != nil {
		clauses = append(clauses, "direction = "+arg(*filter.Direction))
	}
	if filter.Status != nil {
		clauses = append(clauses, "status = "+arg(*filter.Status))
	}
	if filter.RelatedProjectID != nil {
		clauses = append(clauses, "related_project_id = "+arg(*filter.RelatedProjectID))
	}
	if filter.CreatedFrom != nil {
		clauses = append(clauses, "created_at >= "+arg(*filter.CreatedFrom))
	}
	if filter.CreatedTo != nil {
		clauses = append(clauses, "created_at <= "+arg(*filter.CreatedTo))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// List retrieves a filtered transaction page, newest first
func (r *TransactionRepository) List(ctx context.Context, filter transaction.Filter, limit, offset int) ([]*transaction.Transaction, error) {
	where, args := buildFilterClauses(filter)
	query := "SELECT " + transactionColumns + " FROM transactions" + where +
		" ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list transactions", "error", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var result []*transaction.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			r.logger.Error("Failed to scan transaction", "error", err)
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		result = append(result, t)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over transactions", "error", err)
		return nil, fmt.Errorf("error iterating over transactions: %w", err)
	}

	return result, nil
}

// Count returns the total number of transactions matching the filter
func (r *TransactionRepository) Count(ctx context.Context, filter transaction.Filter) (int64, error) {
	where, args := buildFilterClauses(filter)
	query := "SELECT COUNT(*) FROM transactions" + where

	var total int64
	if err := r.querier.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count transactions", "error", err)
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	return total, nil
}

// CompletedTotals sums completed transaction amounts per direction
func (r *TransactionRepository) CompletedTotals(ctx context.Context) (*transaction.DirectionTotals, error) {
	query := `
		SELECT direction, COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE status = $1
		GROUP BY direction
	`

	rows, err := r.querier.Query(ctx, query, transaction.StatusCompleted)
	if err != nil {
		r.logger.Error("Failed to aggregate completed totals", "error", err)
		return nil, fmt.Errorf("failed to aggregate completed totals: %w", err)
	}
	defer rows.Close()

	var totals transaction.DirectionTotals
	for rows.Next() {
		var direction transaction.Direction
		var sum int64
		if err := rows.Scan(&direction, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan completed totals: %w", err)
		}
		switch direction {
		case transaction.DirectionTransfer:
			totals.Transfers = sum
		case transaction.DirectionGrant:
			totals.Grants = sum
		case transaction.DirectionDeduct:
			totals.Deducts = sum
		case transaction.DirectionDividend:
			totals.Dividends = sum
		case transaction.DirectionReward:
			totals.Rewards = sum
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over completed totals: %w", err)
	}

	return &totals, nil
}

// CountsByStatus counts transactions per lifecycle status
func (r *TransactionRepository) CountsByStatus(ctx context.Context) (*transaction.StatusCounts, error) {
	query := `
		SELECT status, COUNT(*)
		FROM transactions
		GROUP BY status
	`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to count transactions by status", "error", err)
		return nil, fmt.Errorf("failed to count transactions by status: %w", err)
	}
	defer rows.Close()

	var counts transaction.StatusCounts
	for rows.Next() {
		var status transaction.Status
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status counts: %w", err)
		}
		switch status {
		case transaction.StatusPendingAdminApproval:
			counts.PendingAdminApproval = count
		case transaction.StatusPendingReceiverConfirm:
			counts.PendingReceiverConfirm = count
		case transaction.StatusCompleted:
			counts.Completed = count
		case transaction.StatusRejected:
			counts.Rejected = count
		case transaction.StatusCancelled:
			counts.Cancelled = count
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over status counts: %w", err)
	}

	return &counts, nil
}

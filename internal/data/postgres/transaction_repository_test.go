package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/partnerhub/token-ledger/internal/domain/ledgererr"
	"github.com/partnerhub/token-ledger/internal/domain/transaction"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transactionTestColumns = []string{
	"id", "from_user_id", "to_user_id", "amount", "direction", "status", "reason",
	"admin_user_id", "admin_comment", "receiver_comment", "related_project_id", "created_at", "completed_at",
}

func pendingTransferFixture(t *testing.T) *transaction.Transaction {
	t.Helper()
	tr, err := transaction.NewTransfer(uuid.New(), uuid.New(), 250, "services rendered", nil)
	require.NoError(t, err)
	return tr
}

func transactionRow(tr *transaction.Transaction) *pgxmock.Rows {
	return pgxmock.NewRows(transactionTestColumns).AddRow(
		tr.ID, tr.FromUserID, tr.ToUserID, tr.Amount, tr.Direction, tr.Status, tr.Reason,
		tr.AdminUserID, tr.AdminComment, tr.ReceiverComment, tr.RelatedProjectID, tr.CreatedAt, tr.CompletedAt,
	)
}

func TestTransactionRepository_Create(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: logger}
	tr := pendingTransferFixture(t)

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO transactions`).
			WithArgs(tr.ID, tr.FromUserID, tr.ToUserID, tr.Amount, tr.Direction, tr.Status, tr.Reason,
				tr.AdminUserID, tr.AdminComment, tr.ReceiverComment, tr.RelatedProjectID, tr.CreatedAt, tr.CompletedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Create(ctx, tr)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		expectedErr := errors.New("db error")
		mock.ExpectExec(`INSERT INTO transactions`).
			WithArgs(tr.ID, tr.FromUserID, tr.ToUserID, tr.Amount, tr.Direction, tr.Status, tr.Reason,
				tr.AdminUserID, tr.AdminComment, tr.ReceiverComment, tr.RelatedProjectID, tr.CreatedAt, tr.CompletedAt).
			WillReturnError(expectedErr)

		err := repo.Create(ctx, tr)
		assert.Error(t, err)
		assert.ErrorIs(t, err, expectedErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: logger}
	tr := pendingTransferFixture(t)

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(`FROM transactions\s+WHERE id = \$1`).
			WithArgs(tr.ID).
			WillReturnRows(transactionRow(tr))

		got, err := repo.GetByID(ctx, tr.ID)
		assert.NoError(t, err)
		assert.Equal(t, tr, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		missingID := uuid.New()
		mock.ExpectQuery(`FROM transactions\s+WHERE id = \$1`).
			WithArgs(missingID).
			WillReturnError(pgx.ErrNoRows)

		got, err := repo.GetByID(ctx, missingID)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, ledgererr.NotFound{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionRepository_UpdateTransition(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: logger}
	id := uuid.New()
	adminID := uuid.New()
	comment := "looks good"

	change := transaction.Transition{
		Status:       transaction.StatusPendingReceiverConfirm,
		AdminUserID:  &adminID,
		AdminComment: &comment,
	}

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE transactions`).
			WithArgs(change.Status, change.AdminUserID, change.AdminComment, change.ReceiverComment, change.CompletedAt, id, transaction.StatusPendingAdminApproval).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.UpdateTransition(ctx, id, transaction.StatusPendingAdminApproval, change)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("concurrent transition lost the race", func(t *testing.T) {
		mock.ExpectExec(`UPDATE transactions`).
			WithArgs(change.Status, change.AdminUserID, change.AdminComment, change.ReceiverComment, change.CompletedAt, id, transaction.StatusPendingAdminApproval).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdateTransition(ctx, id, transaction.StatusPendingAdminApproval, change)
		var conflict transaction.ErrTransitionConflict
		assert.ErrorAs(t, err, &conflict)
		assert.Equal(t, id, conflict.TransactionID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionRepository_FrozenAmount(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: logger}
	userID := uuid.New()

	query := `
		SELECT COALESCE\(SUM\(amount\), 0\)
		FROM transactions
		WHERE from_user_id = \$1 AND direction = \$2 AND status = \$3
	`

	t.Run("pending transfers sum up", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"coalesce"}).AddRow(int64(300))
		mock.ExpectQuery(query).
			WithArgs(userID, transaction.DirectionTransfer, transaction.StatusPendingAdminApproval).
			WillReturnRows(rows)

		frozen, err := repo.FrozenAmount(ctx, userID)
		assert.NoError(t, err)
		assert.Equal(t, int64(300), frozen)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no pending transfers", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"coalesce"}).AddRow(int64(0))
		mock.ExpectQuery(query).
			WithArgs(userID, transaction.DirectionTransfer, transaction.StatusPendingAdminApproval).
			WillReturnRows(rows)

		frozen, err := repo.FrozenAmount(ctx, userID)
		assert.NoError(t, err)
		assert.Zero(t, frozen)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionRepository_List(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: logger}

	t.Run("no filter", func(t *testing.T) {
		tr := pendingTransferFixture(t)
		mock.ExpectQuery(`FROM transactions ORDER BY created_at DESC LIMIT \$1 OFFSET \$2`).
			WithArgs(20, 0).
			WillReturnRows(transactionRow(tr))

		result, err := repo.List(ctx, transaction.Filter{}, 20, 0)
		assert.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, tr.ID, result[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("participant filter matches either party", func(t *testing.T) {
		tr := pendingTransferFixture(t)
		participant := *tr.FromUserID
		filter := transaction.Filter{ParticipantID: &participant}

		mock.ExpectQuery(`FROM transactions WHERE \(from_user_id = \$1 OR to_user_id = \$1\) ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
			WithArgs(participant, 10, 20).
			WillReturnRows(transactionRow(tr))

		result, err := repo.List(ctx, filter, 10, 20)
		assert.NoError(t, err)
		require.Len(t, result, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("combined filters keep positional order", func(t *testing.T) {
		direction := transaction.DirectionTransfer
		status := transaction.StatusCompleted
		from := time.Now().Add(-24 * time.Hour)
		filter := transaction.Filter{Direction: &direction, Status: &status, CreatedFrom: &from}

		mock.ExpectQuery(`FROM transactions WHERE direction = \$1 AND status = \$2 AND created_at >= \$3 ORDER BY created_at DESC LIMIT \$4 OFFSET \$5`).
			WithArgs(direction, status, from, 20, 0).
			WillReturnRows(pgxmock.NewRows(transactionTestColumns))

		result, err := repo.List(ctx, filter, 20, 0)
		assert.NoError(t, err)
		assert.Empty(t, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionRepository_Count(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: logger}

	status := transaction.StatusPendingAdminApproval
	filter := transaction.Filter{Status: &status}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM transactions WHERE status = \$1`).
		WithArgs(status).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	total, err := repo.Count(ctx, filter)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_CompletedTotals(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: logger}

	rows := pgxmock.NewRows([]string{"direction", "sum"}).
		AddRow(transaction.DirectionTransfer, int64(900)).
		AddRow(transaction.DirectionGrant, int64(5000)).
		AddRow(transaction.DirectionDividend, int64(1200))

	mock.ExpectQuery(`SELECT direction, COALESCE\(SUM\(amount\), 0\)`).
		WithArgs(transaction.StatusCompleted).
		WillReturnRows(rows)

	totals, err := repo.CompletedTotals(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(900), totals.Transfers)
	assert.Equal(t, int64(5000), totals.Grants)
	assert.Equal(t, int64(1200), totals.Dividends)
	assert.Zero(t, totals.Deducts)
	assert.Zero(t, totals.Rewards)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_CountsByStatus(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: logger}

	rows := pgxmock.NewRows([]string{"status", "count"}).
		AddRow(transaction.StatusPendingAdminApproval, int64(4)).
		AddRow(transaction.StatusCompleted, int64(17)).
		AddRow(transaction.StatusCancelled, int64(2))

	mock.ExpectQuery(`SELECT status, COUNT\(\*\)`).WillReturnRows(rows)

	counts, err := repo.CountsByStatus(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(4), counts.PendingAdminApproval)
	assert.Equal(t, int64(17), counts.Completed)
	assert.Equal(t, int64(2), counts.Cancelled)
	assert.Zero(t, counts.PendingReceiverConfirm)
	assert.Zero(t, counts.Rejected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

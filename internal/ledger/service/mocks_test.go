package service

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/partnerhub/token-ledger/internal/domain/account"
	"github.com/partnerhub/token-ledger/internal/domain/audit"
	"github.com/partnerhub/token-ledger/internal/domain/directory"
	"github.com/partnerhub/token-ledger/internal/domain/notification"
	"github.com/partnerhub/token-ledger/internal/domain/transaction"
	"github.com/stretchr/testify/mock"
)

// Mock implementations of the dependencies

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, acc *account.Account) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepository) Update(ctx context.Context, acc *account.Account) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

func (m *MockAccountRepository) LockForUpdate(ctx context.Context, userID uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepository) TotalBalances(ctx context.Context) (int64, int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

// WithTx returns the mock itself; transaction scoping is exercised through
// the stub runner, not through a real connection.
func (m *MockAccountRepository) WithTx(tx pgx.Tx) account.Repository {
	return m
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) LockByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) UpdateTransition(ctx context.Context, id uuid.UUID, expected transaction.Status, change transaction.Transition) error {
	args := m.Called(ctx, id, expected, change)
	return args.Error(0)
}

func (m *MockTransactionRepository) FrozenAmount(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) List(ctx context.Context, filter transaction.Filter, limit, offset int) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Count(ctx context.Context, filter transaction.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) CompletedTotals(ctx context.Context) (*transaction.DirectionTotals, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.DirectionTotals), args.Error(1)
}

func (m *MockTransactionRepository) CountsByStatus(ctx context.Context) (*transaction.StatusCounts, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.StatusCounts), args.Error(1)
}

func (m *MockTransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	return m
}

type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserDirectory) AccountExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserDirectory) AdminIDs(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type MockProjectRegistry struct {
	mock.Mock
}

func (m *MockProjectRegistry) GetProjectRestriction(ctx context.Context, projectID uuid.UUID) (*directory.ProjectRestriction, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*directory.ProjectRestriction), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, recipients []uuid.UUID, eventType notification.EventType, payload any) {
	m.Called(ctx, recipients, eventType, payload)
}

type MockAuditRecorder struct {
	mock.Mock
}

func (m *MockAuditRecorder) Record(ctx context.Context, rec *audit.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// MockTx implements the pgx.Tx interface for testing
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Begin(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Tx), args.Error(1)
}

func (m *MockTx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTx) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (m *MockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (m *MockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return &pgconn.StatementDescription{}, nil
}

func (m *MockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *MockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (m *MockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (m *MockTx) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (m *MockTx) Conn() *pgx.Conn {
	return nil
}

// stubTxRunner invokes the callback with a MockTx, standing in for the
// pool-backed runner. Commit and rollback are outside the callback's view,
// so the services' behavior is fully observable through the repositories.
type stubTxRunner struct {
	tx pgx.Tx
}

func (r *stubTxRunner) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(r.tx)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

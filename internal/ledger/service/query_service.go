package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/partnerhub/token-ledger/internal/domain/account"
	"github.com/partnerhub/token-ledger/internal/domain/transaction"
)

// QueryServiceImpl implements the QueryService interface
type QueryServiceImpl struct {
	accounts account.Repository
	ledger   transaction.Repository
	logger   *slog.Logger
}

// NewQueryService creates a new read-only query service
func NewQueryService(logger *slog.Logger, accounts account.Repository, ledger transaction.Repository) QueryService {
	return &QueryServiceImpl{
		accounts: accounts,
		ledger:   ledger,
		logger:   logger,
	}
}

// GetAccount returns the balance with the frozen/available projection.
// Frozen is derived at read time from pending transfers, never stored.
func (s *QueryServiceImpl) GetAccount(ctx context.Context, userID uuid.UUID) (*AccountView, error) {
	acc, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	frozen, err := s.ledger.FrozenAmount(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &AccountView{
		UserID:        acc.UserID,
		Balance:       acc.Balance,
		InitialAmount: acc.InitialAmount,
		Frozen:        frozen,
		Available:     acc.Balance - frozen,
		CreatedAt:     acc.CreatedAt,
		UpdatedAt:     acc.UpdatedAt,
	}, nil
}

// GetTransaction retrieves one transaction by ID
func (s *QueryServiceImpl) GetTransaction(ctx context.Context, transactionID uuid.UUID) (*transaction.Transaction, error) {
	return s.ledger.GetByID(ctx, transactionID)
}

// ListTransactions returns a filtered page of ledger history plus the total
// match count
func (s *QueryServiceImpl) ListTransactions(ctx context.Context, filter transaction.Filter, page, perPage int) ([]*transaction.Transaction, int64, error) {
	offset := (page - 1) * perPage

	items, err := s.ledger.List(ctx, filter, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.ledger.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// GetGlobalStats aggregates platform-wide ledger totals
func (s *QueryServiceImpl) GetGlobalStats(ctx context.Context) (*GlobalStats, error) {
	totals, err := s.ledger.CompletedTotals(ctx)
	if err != nil {
		return nil, err
	}

	counts, err := s.ledger.CountsByStatus(ctx)
	if err != nil {
		return nil, err
	}

	balance, initial, err := s.accounts.TotalBalances(ctx)
	if err != nil {
		return nil, err
	}

	return &GlobalStats{
		Totals:       *totals,
		Counts:       *counts,
		TotalBalance: balance,
		TotalInitial: initial,
		GeneratedAt:  time.Now(),
	}, nil
}

package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/partnerhub/token-ledger/internal/domain/ledgererr"
)

// Common errors
var (
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Account holds the token balance of one platform user. There is exactly one
// account per user, created at onboarding time and never deleted. The balance
// is mutated only by ledger settlement operations, always inside the same
// database transaction as the transaction record write.
type Account struct {
	UserID        uuid.UUID `json:"user_id"`
	Balance       int64     `json:"balance"` // Whole token units, never negative
	InitialAmount int64     `json:"initial_amount"`
	Version       int       `json:"version"` // For optimistic locking
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewAccount creates an account for a user with the given opening grant
func NewAccount(userID uuid.UUID, initialAmount int64) (*Account, error) {
	if initialAmount < 0 {
		return nil, ErrInvalidAmount
	}

	now := time.Now()
	return &Account{
		UserID:        userID,
		Balance:       initialAmount,
		InitialAmount: initialAmount,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Credit adds the specified amount to the account balance
func (a *Account) Credit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	a.Balance += amount
	a.UpdatedAt = time.Now()
	a.Version++
	return nil
}

// Debit subtracts the specified amount from the account balance.
// Returns ledgererr.InsufficientBalance when the balance would go negative.
func (a *Account) Debit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	if a.Balance < amount {
		return ledgererr.InsufficientBalance{UserID: a.UserID.String(), Balance: a.Balance, Requested: amount}
	}

	a.Balance -= amount
	a.UpdatedAt = time.Now()
	a.Version++
	return nil
}

// CanDebit checks whether the account covers the given amount
func (a *Account) CanDebit(amount int64) bool {
	return a.Balance >= amount
}

// Package ledgererr defines the business error taxonomy of the token ledger.
// Every operation reports failures through one of these five buckets; the
// HTTP layer maps them to status codes and callers match them with errors.Is
// or errors.As. Infrastructure failures are wrapped normal errors and abort
// the whole database transaction instead.
package ledgererr

import "fmt"

// NotFound indicates a missing account, user, transaction or project
type NotFound struct {
	Resource string // "account", "user", "transaction", "project"
	ID       string
}

func (e NotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// Is matches any NotFound when the target carries no resource or ID
func (e NotFound) Is(target error) bool {
	t, ok := target.(NotFound)
	if !ok {
		return false
	}
	if t.Resource == "" && t.ID == "" {
		return true
	}
	if t.ID == "" {
		return e.Resource == t.Resource
	}
	return e.Resource == t.Resource && e.ID == t.ID
}

// Validation indicates a request that violates a business rule before any
// state is touched (self-transfer, non-positive amount, restricted project)
type Validation struct {
	Reason string
}

func (e Validation) Error() string {
	return "validation failed: " + e.Reason
}

func (e Validation) Is(target error) bool {
	t, ok := target.(Validation)
	if !ok {
		return false
	}
	return t.Reason == "" || e.Reason == t.Reason
}

// InsufficientBalance indicates a debit that would take a balance negative.
// Balance and Requested are captured at the moment of the failed check.
type InsufficientBalance struct {
	UserID    string
	Balance   int64
	Requested int64
}

func (e InsufficientBalance) Error() string {
	return fmt.Sprintf("insufficient balance for user %s: have %d, need %d", e.UserID, e.Balance, e.Requested)
}

func (e InsufficientBalance) Is(target error) bool {
	t, ok := target.(InsufficientBalance)
	if !ok {
		return false
	}
	return t.UserID == "" || e.UserID == t.UserID
}

// Forbidden indicates the actor is not the authorized party for the
// requested transition
type Forbidden struct {
	ActorID string
	Action  string
}

func (e Forbidden) Error() string {
	return fmt.Sprintf("actor %s is not authorized for %s", e.ActorID, e.Action)
}

func (e Forbidden) Is(target error) bool {
	t, ok := target.(Forbidden)
	if !ok {
		return false
	}
	return t.ActorID == "" || e.ActorID == t.ActorID
}

// InvalidState indicates a transition attempted from a non-matching current
// status. This subsumes "already processed" double submissions: re-invoking a
// step on a transaction that moved on is an error, never a silent no-op.
type InvalidState struct {
	TransactionID string
	Current       string
	Attempted     string
}

func (e InvalidState) Error() string {
	return fmt.Sprintf("transaction %s is %s, cannot %s", e.TransactionID, e.Current, e.Attempted)
}

func (e InvalidState) Is(target error) bool {
	t, ok := target.(InvalidState)
	if !ok {
		return false
	}
	return t.TransactionID == "" || e.TransactionID == t.TransactionID
}

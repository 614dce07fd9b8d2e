// Package transaction defines the append-only ledger record and its state
// machine. A Transaction is immutable once created except for its status and
// decision fields, which move only along the legal transition graph.
package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/partnerhub/token-ledger/internal/domain/ledgererr"
)

// Direction defines the shape of a value movement
type Direction string

const (
	DirectionTransfer Direction = "TRANSFER"     // peer to peer, both parties are real users
	DirectionGrant    Direction = "ADMIN_GRANT"  // from is nil
	DirectionDeduct   Direction = "ADMIN_DEDUCT" // to is nil
	DirectionDividend Direction = "DIVIDEND"     // from is nil, batch-created per project
	DirectionReward   Direction = "REWARD"       // from is nil, settled by other platform modules
)

// Status defines the transaction lifecycle states
type Status string

const (
	StatusPendingAdminApproval   Status = "PENDING_ADMIN_APPROVAL"
	StatusPendingReceiverConfirm Status = "PENDING_RECEIVER_CONFIRM"
	StatusCompleted              Status = "COMPLETED"
	StatusRejected               Status = "REJECTED"
	StatusCancelled              Status = "CANCELLED"
)

// IsTerminal reports whether no further transition may leave the status
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// transitions is the closed transition graph of the transfer state machine.
// Direct settlements are born COMPLETED and never appear here.
var transitions = map[Status][]Status{
	StatusPendingAdminApproval:   {StatusPendingReceiverConfirm, StatusRejected, StatusCancelled},
	StatusPendingReceiverConfirm: {StatusCompleted, StatusRejected},
}

// CanTransitionTo reports whether moving from s to next is legal
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transaction is one row of the ledger. Amount, parties and direction are
// immutable after insert; only Status, AdminUserID, AdminComment,
// ReceiverComment and CompletedAt may change, through a legal transition.
type Transaction struct {
	ID               uuid.UUID  `json:"id"`
	FromUserID       *uuid.UUID `json:"from_user_id,omitempty"`
	ToUserID         *uuid.UUID `json:"to_user_id,omitempty"`
	Amount           int64      `json:"amount"`
	Direction        Direction  `json:"direction"`
	Status           Status     `json:"status"`
	Reason           string     `json:"reason"`
	AdminUserID      *uuid.UUID `json:"admin_user_id,omitempty"`
	AdminComment     string     `json:"admin_comment,omitempty"`
	ReceiverComment  string     `json:"receiver_comment,omitempty"`
	RelatedProjectID *uuid.UUID `json:"related_project_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

func validateAmount(amount int64) error {
	if amount <= 0 {
		return ledgererr.Validation{Reason: "amount must be positive"}
	}
	return nil
}

// NewTransfer creates a peer transfer in PENDING_ADMIN_APPROVAL. Both parties
// are real users; a self-transfer is rejected here before any storage access.
func NewTransfer(fromUserID, toUserID uuid.UUID, amount int64, reason string, relatedProjectID *uuid.UUID) (*Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if fromUserID == toUserID {
		return nil, ledgererr.Validation{Reason: "cannot transfer to yourself"}
	}

	from, to := fromUserID, toUserID
	return &Transaction{
		ID:               uuid.New(),
		FromUserID:       &from,
		ToUserID:         &to,
		Amount:           amount,
		Direction:        DirectionTransfer,
		Status:           StatusPendingAdminApproval,
		Reason:           reason,
		RelatedProjectID: relatedProjectID,
		CreatedAt:        time.Now(),
	}, nil
}

// NewGrant creates a completed administrative grant (no sender party)
func NewGrant(adminID, toUserID uuid.UUID, amount int64, reason string, relatedProjectID *uuid.UUID) (*Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	to, admin := toUserID, adminID
	now := time.Now()
	return &Transaction{
		ID:               uuid.New(),
		ToUserID:         &to,
		Amount:           amount,
		Direction:        DirectionGrant,
		Status:           StatusCompleted,
		Reason:           reason,
		AdminUserID:      &admin,
		RelatedProjectID: relatedProjectID,
		CreatedAt:        now,
		CompletedAt:      &now,
	}, nil
}

// NewDeduct creates a completed administrative deduction (no receiver party)
func NewDeduct(adminID, fromUserID uuid.UUID, amount int64, reason string, relatedProjectID *uuid.UUID) (*Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	from, admin := fromUserID, adminID
	now := time.Now()
	return &Transaction{
		ID:               uuid.New(),
		FromUserID:       &from,
		Amount:           amount,
		Direction:        DirectionDeduct,
		Status:           StatusCompleted,
		Reason:           reason,
		AdminUserID:      &admin,
		RelatedProjectID: relatedProjectID,
		CreatedAt:        now,
		CompletedAt:      &now,
	}, nil
}

// NewDividend creates one completed dividend payout of a project distribution batch
func NewDividend(adminID, toUserID, projectID uuid.UUID, amount int64, reason string) (*Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	to, admin, project := toUserID, adminID, projectID
	now := time.Now()
	return &Transaction{
		ID:               uuid.New(),
		ToUserID:         &to,
		Amount:           amount,
		Direction:        DirectionDividend,
		Status:           StatusCompleted,
		Reason:           reason,
		AdminUserID:      &admin,
		RelatedProjectID: &project,
		CreatedAt:        now,
		CompletedAt:      &now,
	}, nil
}

// NewReward creates a completed reward credit settled by another platform
// module through the grant primitive. No admin actor is recorded.
func NewReward(toUserID uuid.UUID, amount int64, reason string, relatedProjectID *uuid.UUID) (*Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	to := toUserID
	now := time.Now()
	return &Transaction{
		ID:               uuid.New(),
		ToUserID:         &to,
		Amount:           amount,
		Direction:        DirectionReward,
		Status:           StatusCompleted,
		Reason:           reason,
		RelatedProjectID: relatedProjectID,
		CreatedAt:        now,
		CompletedAt:      &now,
	}, nil
}

// ParseDirection validates a direction string from the transport layer
func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case DirectionTransfer, DirectionGrant, DirectionDeduct, DirectionDividend, DirectionReward:
		return Direction(s), true
	}
	return "", false
}

// ParseStatus validates a status string from the transport layer
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPendingAdminApproval, StatusPendingReceiverConfirm, StatusCompleted, StatusRejected, StatusCancelled:
		return Status(s), true
	}
	return "", false
}

package handler

import (
	"time"

	"github.com/partnerhub/token-ledger/internal/domain/transaction"
	"github.com/partnerhub/token-ledger/internal/ledger/service"
)

// CreateTransferRequest submits a peer transfer for admin review
type CreateTransferRequest struct {
	ToUserID         string `json:"to_user_id" binding:"required,uuid"`
	Amount           int64  `json:"amount" binding:"required,gt=0"`
	Reason           string `json:"reason" binding:"required"`
	RelatedProjectID string `json:"related_project_id,omitempty" binding:"omitempty,uuid"`
}

// ReviewTransferRequest carries an admin's approve/reject decision
type ReviewTransferRequest struct {
	Approve *bool  `json:"approve" binding:"required"`
	Comment string `json:"comment,omitempty"`
}

// ConfirmTransferRequest carries the receiver's accept/decline decision
type ConfirmTransferRequest struct {
	Accept  *bool  `json:"accept" binding:"required"`
	Comment string `json:"comment,omitempty"`
}

// CancelTransferRequest withdraws a transfer still awaiting admin review
type CancelTransferRequest struct {
	Reason string `json:"reason,omitempty"`
}

// GrantRequest credits a user by administrative decision
type GrantRequest struct {
	ToUserID         string `json:"to_user_id" binding:"required,uuid"`
	Amount           int64  `json:"amount" binding:"required,gt=0"`
	Reason           string `json:"reason" binding:"required"`
	RelatedProjectID string `json:"related_project_id,omitempty" binding:"omitempty,uuid"`
}

// DeductRequest debits a user by administrative decision
type DeductRequest struct {
	FromUserID       string `json:"from_user_id" binding:"required,uuid"`
	Amount           int64  `json:"amount" binding:"required,gt=0"`
	Reason           string `json:"reason" binding:"required"`
	RelatedProjectID string `json:"related_project_id,omitempty" binding:"omitempty,uuid"`
}

// DistributionItem is one recipient's share of a dividend batch
type DistributionItem struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	Amount int64  `json:"amount" binding:"required,gt=0"`
	Note   string `json:"note,omitempty"`
}

// DividendRequest distributes project proceeds to a list of recipients
type DividendRequest struct {
	ProjectID     string             `json:"project_id" binding:"required,uuid"`
	Reason        string             `json:"reason" binding:"required"`
	Distributions []DistributionItem `json:"distributions" binding:"required,min=1,dive"`
}

// RewardRequest settles a reward credit on behalf of another platform module
type RewardRequest struct {
	SourceModule     string `json:"source_module" binding:"required"`
	ToUserID         string `json:"to_user_id" binding:"required,uuid"`
	Amount           int64  `json:"amount" binding:"required,gt=0"`
	Reason           string `json:"reason" binding:"required"`
	RelatedProjectID string `json:"related_project_id,omitempty" binding:"omitempty,uuid"`
}

// TransactionResponse represents a ledger transaction in API responses
type TransactionResponse struct {
	ID               string `json:"id"`
	FromUserID       string `json:"from_user_id,omitempty"`
	ToUserID         string `json:"to_user_id,omitempty"`
	Amount           int64  `json:"amount"`
	Direction        string `json:"direction"`
	Status           string `json:"status"`
	Reason           string `json:"reason"`
	AdminUserID      string `json:"admin_user_id,omitempty"`
	AdminComment     string `json:"admin_comment,omitempty"`
	ReceiverComment  string `json:"receiver_comment,omitempty"`
	RelatedProjectID string `json:"related_project_id,omitempty"`
	CreatedAt        string `json:"created_at"`
	CompletedAt      string `json:"completed_at,omitempty"`
}

// AccountResponse represents a user's account in API responses. Frozen and
// Available are read-time projections over the pending ledger.
type AccountResponse struct {
	UserID        string `json:"user_id"`
	Balance       int64  `json:"balance"`
	InitialAmount int64  `json:"initial_amount"`
	Frozen        int64  `json:"frozen"`
	Available     int64  `json:"available"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// StatsResponse represents platform-wide ledger totals in API responses
type StatsResponse struct {
	CompletedTotals transaction.DirectionTotals `json:"completed_totals"`
	StatusCounts    transaction.StatusCounts    `json:"status_counts"`
	TotalBalance    int64                       `json:"total_balance"`
	TotalInitial    int64                       `json:"total_initial_amount"`
	GeneratedAt     string                      `json:"generated_at"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

// ListTransactionsParams represents the filter parameters of the listing endpoint
type ListTransactionsParams struct {
	ParticipantID string `form:"participant_id" binding:"omitempty,uuid"`
	Direction     string `form:"direction"`
	Status        string `form:"status"`
	ProjectID     string `form:"project_id" binding:"omitempty,uuid"`
	From          string `form:"from"`
	To            string `form:"to"`
}

// mapTransactionToResponse maps a ledger transaction to a response DTO
func mapTransactionToResponse(t *transaction.Transaction) TransactionResponse {
	response := TransactionResponse{
		ID:              t.ID.String(),
		Amount:          t.Amount,
		Direction:       string(t.Direction),
		Status:          string(t.Status),
		Reason:          t.Reason,
		AdminComment:    t.AdminComment,
		ReceiverComment: t.ReceiverComment,
		CreatedAt:       t.CreatedAt.Format(time.RFC3339),
	}

	if t.FromUserID != nil {
		response.FromUserID = t.FromUserID.String()
	}
	if t.ToUserID != nil {
		response.ToUserID = t.ToUserID.String()
	}
	if t.AdminUserID != nil {
		response.AdminUserID = t.AdminUserID.String()
	}
	if t.RelatedProjectID != nil {
		response.RelatedProjectID = t.RelatedProjectID.String()
	}
	if t.CompletedAt != nil {
		response.CompletedAt = t.CompletedAt.Format(time.RFC3339)
	}

	return response
}

// mapAccountToResponse maps an account view to a response DTO
func mapAccountToResponse(v *service.AccountView) AccountResponse {
	return AccountResponse{
		UserID:        v.UserID.String(),
		Balance:       v.Balance,
		InitialAmount: v.InitialAmount,
		Frozen:        v.Frozen,
		Available:     v.Available,
		CreatedAt:     v.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     v.UpdatedAt.Format(time.RFC3339),
	}
}

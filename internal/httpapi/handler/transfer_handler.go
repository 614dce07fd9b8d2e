package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/partnerhub/token-ledger/internal/httpapi/middleware"
	"github.com/partnerhub/token-ledger/internal/ledger/service"
)

// TransferHandler handles HTTP requests for the three-step transfer protocol
type TransferHandler struct {
	transferService service.TransferService
	logger          *slog.Logger
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(logger *slog.Logger, transferService service.TransferService) *TransferHandler {
	return &TransferHandler{
		transferService: transferService,
		logger:          logger,
	}
}

// Create submits a new peer transfer for admin review
func (h *TransferHandler) Create(c *gin.Context) {
	actorID, ok := middleware.GetActorID(c)
	if !ok {
		RespondUnauthorized(c, "Missing or invalid "+middleware.ActorIDHeader+" header")
		return
	}

	var req CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	toUserID, err := uuid.Parse(req.ToUserID)
	if err != nil {
		RespondBadRequest(c, "Invalid receiver ID")
		return
	}

	var projectID *uuid.UUID
	if req.RelatedProjectID != "" {
		id, err := uuid.Parse(req.RelatedProjectID)
		if err != nil {
			RespondBadRequest(c, "Invalid project ID")
			return
		}
		projectID = &id
	}

	t, err := h.transferService.CreateTransfer(c.Request.Context(), actorID, toUserID, req.Amount, req.Reason, projectID)
	if err != nil {
		h.logger.Error("Failed to create transfer", "from_user_id", actorID.String(), "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondCreated(c, mapTransactionToResponse(t))
}

// Review records an admin's approve or reject decision on a pending transfer
func (h *TransferHandler) Review(c *gin.Context) {
	actorID, ok := middleware.GetActorID(c)
	if !ok {
		RespondUnauthorized(c, "Missing or invalid "+middleware.ActorIDHeader+" header")
		return
	}

	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	var req ReviewTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	t, err := h.transferService.AdminReviewTransfer(c.Request.Context(), transactionID, actorID, *req.Approve, req.Comment)
	if err != nil {
		h.logger.Error("Failed to review transfer", "transaction_id", transactionID.String(), "admin_id", actorID.String(), "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, mapTransactionToResponse(t))
}

// Confirm records the receiver's accept or decline decision on an approved transfer
func (h *TransferHandler) Confirm(c *gin.Context) {
	actorID, ok := middleware.GetActorID(c)
	if !ok {
		RespondUnauthorized(c, "Missing or invalid "+middleware.ActorIDHeader+" header")
		return
	}

	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	var req ConfirmTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	t, err := h.transferService.ReceiverConfirm(c.Request.Context(), transactionID, actorID, *req.Accept, req.Comment)
	if err != nil {
		h.logger.Error("Failed to confirm transfer", "transaction_id", transactionID.String(), "receiver_id", actorID.String(), "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, mapTransactionToResponse(t))
}

// Cancel withdraws a transfer that is still awaiting admin review
func (h *TransferHandler) Cancel(c *gin.Context) {
	actorID, ok := middleware.GetActorID(c)
	if !ok {
		RespondUnauthorized(c, "Missing or invalid "+middleware.ActorIDHeader+" header")
		return
	}

	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	// The cancel reason is optional, so an empty body is fine.
	var req CancelTransferRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Error("Invalid request body", "error", err)
			RespondBadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	t, err := h.transferService.CancelTransfer(c.Request.Context(), transactionID, actorID, req.Reason)
	if err != nil {
		h.logger.Error("Failed to cancel transfer", "transaction_id", transactionID.String(), "user_id", actorID.String(), "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, mapTransactionToResponse(t))
}

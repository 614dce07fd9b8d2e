package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/partnerhub/token-ledger/internal/httpapi/middleware"
	"github.com/partnerhub/token-ledger/internal/ledger/service"
)

// SettlementHandler handles HTTP requests for single-step settlements:
// grants, deductions, dividend distributions and module rewards
type SettlementHandler struct {
	settlementService service.SettlementService
	logger            *slog.Logger
}

// NewSettlementHandler creates a new settlement handler
func NewSettlementHandler(logger *slog.Logger, settlementService service.SettlementService) *SettlementHandler {
	return &SettlementHandler{
		settlementService: settlementService,
		logger:            logger,
	}
}

// Grant credits a user by administrative decision
func (h *SettlementHandler) Grant(c *gin.Context) {
	actorID, ok := middleware.GetActorID(c)
	if !ok {
		RespondUnauthorized(c, "Missing or invalid "+middleware.ActorIDHeader+" header")
		return
	}

	var req GrantRequest
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

	projectID, ok := parseOptionalUUID(c, req.RelatedProjectID)
	if !ok {
		return
	}

	t, err := h.settlementService.AdminGrant(c.Request.Context(), actorID, toUserID, req.Amount, req.Reason, projectID)
	if err != nil {
		h.logger.Error("Failed to grant", "admin_id", actorID.String(), "to_user_id", toUserID.String(), "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondCreated(c, mapTransactionToResponse(t))
}

// Deduct debits a user by administrative decision
func (h *SettlementHandler) Deduct(c *gin.Context) {
	actorID, ok := middleware.GetActorID(c)
	if !ok {
		RespondUnauthorized(c, "Missing or invalid "+middleware.ActorIDHeader+" header")
		return
	}

	var req DeductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	fromUserID, err := uuid.Parse(req.FromUserID)
	if err != nil {
		RespondBadRequest(c, "Invalid user ID")
		return
	}

	projectID, ok := parseOptionalUUID(c, req.RelatedProjectID)
	if !ok {
		return
	}

	t, err := h.settlementService.AdminDeduct(c.Request.Context(), actorID, fromUserID, req.Amount, req.Reason, projectID)
	if err != nil {
		h.logger.Error("Failed to deduct", "admin_id", actorID.String(), "from_user_id", fromUserID.String(), "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondCreated(c, mapTransactionToResponse(t))
}

// Dividend distributes project proceeds to a list of recipients in one batch
func (h *SettlementHandler) Dividend(c *gin.Context) {
	actorID, ok := middleware.GetActorID(c)
	if !ok {
		RespondUnauthorized(c, "Missing or invalid "+middleware.ActorIDHeader+" header")
		return
	}

	var req DividendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		RespondBadRequest(c, "Invalid project ID")
		return
	}

	distributions := make([]service.Distribution, 0, len(req.Distributions))
	for _, item := range req.Distributions {
		userID, err := uuid.Parse(item.UserID)
		if err != nil {
			RespondBadRequest(c, "Invalid recipient ID: "+item.UserID)
			return
		}
		distributions = append(distributions, service.Distribution{
			UserID: userID,
			Amount: item.Amount,
			Note:   item.Note,
		})
	}

	results, err := h.settlementService.DistributeDividend(c.Request.Context(), actorID, projectID, distributions, req.Reason)
	if err != nil {
		h.logger.Error("Failed to distribute dividend", "admin_id", actorID.String(), "project_id", projectID.String(), "error", err)
		RespondDomainError(c, err)
		return
	}

	responses := make([]TransactionResponse, 0, len(results))
	for _, t := range results {
		responses = append(responses, mapTransactionToResponse(t))
	}

	RespondCreated(c, responses)
}

// Reward settles a reward credit on behalf of another platform module
func (h *SettlementHandler) Reward(c *gin.Context) {
	var req RewardRequest
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

	projectID, ok := parseOptionalUUID(c, req.RelatedProjectID)
	if !ok {
		return
	}

	t, err := h.settlementService.SettleReward(c.Request.Context(), req.SourceModule, toUserID, req.Amount, req.Reason, projectID)
	if err != nil {
		h.logger.Error("Failed to settle reward", "source_module", req.SourceModule, "to_user_id", toUserID.String(), "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondCreated(c, mapTransactionToResponse(t))
}

// parseOptionalUUID parses an optional UUID field, responding 400 itself on
// a malformed value. The second return is false when a response was sent.
func parseOptionalUUID(c *gin.Context, raw string) (*uuid.UUID, bool) {
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		RespondBadRequest(c, "Invalid project ID")
		return nil, false
	}
	return &id, true
}

package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/partnerhub/token-ledger/internal/domain/transaction"
	"github.com/partnerhub/token-ledger/internal/ledger/service"
)

// QueryHandler handles the read-only endpoints: account views, transaction
// lookups and listings, and platform statistics
type QueryHandler struct {
	queryService service.QueryService
	logger       *slog.Logger
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(logger *slog.Logger, queryService service.QueryService) *QueryHandler {
	return &QueryHandler{
		queryService: queryService,
		logger:       logger,
	}
}

// GetAccount returns a user's balance with the frozen/available projection
func (h *QueryHandler) GetAccount(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid user ID")
		return
	}

	view, err := h.queryService.GetAccount(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to get account", "user_id", userID.String(), "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, mapAccountToResponse(view))
}

// GetTransaction retrieves one ledger transaction by ID
func (h *QueryHandler) GetTransaction(c *gin.Context) {
	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	t, err := h.queryService.GetTransaction(c.Request.Context(), transactionID)
	if err != nil {
		h.logger.Error("Failed to get transaction", "transaction_id", transactionID.String(), "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, mapTransactionToResponse(t))
}

// ListTransactions returns a filtered, paginated slice of the ledger
func (h *QueryHandler) ListTransactions(c *gin.Context) {
	var params ListTransactionsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid filter parameters")
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	filter, err := buildFilter(params)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	items, total, err := h.queryService.ListTransactions(c.Request.Context(), filter, pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to list transactions", "error", err)
		RespondDomainError(c, err)
		return
	}

	responses := make([]TransactionResponse, 0, len(items))
	for _, t := range items {
		responses = append(responses, mapTransactionToResponse(t))
	}

	RespondWithPaginatedData(c, http.StatusOK, responses, pagination.Page, pagination.PerPage, int(total))
}

// GetStats returns platform-wide ledger totals
func (h *QueryHandler) GetStats(c *gin.Context) {
	stats, err := h.queryService.GetGlobalStats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get global stats", "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, StatsResponse{
		CompletedTotals: stats.Totals,
		StatusCounts:    stats.Counts,
		TotalBalance:    stats.TotalBalance,
		TotalInitial:    stats.TotalInitial,
		GeneratedAt:     stats.GeneratedAt.Format(time.RFC3339),
	})
}

// buildFilter converts validated query parameters into the typed filter
func buildFilter(params ListTransactionsParams) (transaction.Filter, error) {
	var filter transaction.Filter

	if params.ParticipantID != "" {
		id, err := uuid.Parse(params.ParticipantID)
		if err != nil {
			return filter, err
		}
		filter.ParticipantID = &id
	}

	if params.Direction != "" {
		direction, ok := transaction.ParseDirection(params.Direction)
		if !ok {
			return filter, errInvalidFilter("direction", params.Direction)
		}
		filter.Direction = &direction
	}

	if params.Status != "" {
		status, ok := transaction.ParseStatus(params.Status)
		if !ok {
			return filter, errInvalidFilter("status", params.Status)
		}
		filter.Status = &status
	}

	if params.ProjectID != "" {
		id, err := uuid.Parse(params.ProjectID)
		if err != nil {
			return filter, err
		}
		filter.RelatedProjectID = &id
	}

	if params.From != "" {
		from, err := time.Parse(time.RFC3339, params.From)
		if err != nil {
			return filter, errInvalidFilter("from", params.From)
		}
		filter.CreatedFrom = &from
	}

	if params.To != "" {
		to, err := time.Parse(time.RFC3339, params.To)
		if err != nil {
			return filter, errInvalidFilter("to", params.To)
		}
		filter.CreatedTo = &to
	}

	return filter, nil
}

func errInvalidFilter(name, value string) error {
	return fmt.Errorf("invalid %s parameter: %s", name, value)
}

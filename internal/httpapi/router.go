package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/partnerhub/token-ledger/internal/httpapi/handler"
	"github.com/partnerhub/token-ledger/internal/httpapi/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	transferHandler *handler.TransferHandler,
	settlementHandler *handler.SettlementHandler,
	queryHandler *handler.QueryHandler,
) {
	// Correlation and identity run before the logger so every request line
	// carries both.
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.ActorID())
	r.Use(middleware.Logger(logger))

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Three-step transfer protocol
		transfers := v1.Group("/transfers")
		{
			transfers.POST("", transferHandler.Create)
			transfers.POST("/:id/review", transferHandler.Review)
			transfers.POST("/:id/confirm", transferHandler.Confirm)
			transfers.POST("/:id/cancel", transferHandler.Cancel)
		}

		// Single-step settlements
		settlements := v1.Group("/settlements")
		{
			settlements.POST("/grant", settlementHandler.Grant)
			settlements.POST("/deduct", settlementHandler.Deduct)
			settlements.POST("/dividend", settlementHandler.Dividend)
			settlements.POST("/reward", settlementHandler.Reward)
		}

		// Read-only queries
		v1.GET("/accounts/:id", queryHandler.GetAccount)
		v1.GET("/transactions", queryHandler.ListTransactions)
		v1.GET("/transactions/:id", queryHandler.GetTransaction)
		v1.GET("/stats", queryHandler.GetStats)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}

package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stackbudget-ledger/internal/api/handler"
	"github.com/stackbudget-ledger/internal/api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	accountHandler *handler.AccountHandler,
	stackHandler *handler.StackHandler,
	transactionHandler *handler.TransactionHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Account operations
		accounts := v1.Group("/accounts")
		{
			accounts.POST("", accountHandler.Create)
			accounts.GET("/:id", accountHandler.GetByID)
			accounts.POST("/:id/balance", accountHandler.SetBalance)
			accounts.POST("/:id/resolve-negative", accountHandler.ResolveNegative)
			accounts.PUT("/:id/preferences", accountHandler.SetPreference)
			accounts.GET("/:id/transactions", transactionHandler.GetByAccountID)
			accounts.GET("/:id/stacks", stackHandler.ListByAccount)
			accounts.POST("/:id/stacks/reorder", accountHandler.Reorder)
		}

		// Stack operations
		stacks := v1.Group("/stacks")
		{
			stacks.POST("", stackHandler.Create)
			stacks.GET("/:id", stackHandler.GetByID)
			stacks.PATCH("/:id", stackHandler.Update)
			stacks.DELETE("/:id", stackHandler.Delete)
			stacks.POST("/:id/allocate", stackHandler.Allocate)
			stacks.POST("/:id/allocate/preview", stackHandler.PreviewAllocate)
			stacks.POST("/:id/deallocate", stackHandler.Deallocate)
			stacks.POST("/:id/reset", stackHandler.Reset)
			stacks.POST("/:id/dismiss-reset", stackHandler.DismissReset)
			stacks.GET("/:id/payment-plan", stackHandler.PaymentPlan)
		}

		// Transaction history
		transactions := v1.Group("/transactions")
		{
			transactions.GET("/:id", transactionHandler.GetByID)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}

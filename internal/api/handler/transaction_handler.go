package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stackbudget-ledger/internal/api/service"
	"github.com/stackbudget-ledger/internal/domain/ledger"
)

// TransactionHandler serves the transaction-history read model
type TransactionHandler struct {
	transactionService service.TransactionService
	logger             *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, transactionService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

// GetByID retrieves history entry details by its ID, returns 404 if not found
func (h *TransactionHandler) GetByID(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "transaction")
	if !ok {
		return
	}

	entry, err := h.transactionService.GetTransactionByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get transaction", "id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	if entry == nil {
		RespondNotFound(c, "Transaction not found")
		return
	}

	RespondOK(c, mapEntryToResponse(entry))
}

// GetByAccountID retrieves paginated transaction history for an account
func (h *TransactionHandler) GetByAccountID(c *gin.Context) {
	accountID, ok := parseIDParam(c, h.logger, "account")
	if !ok {
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	entries, total, err := h.transactionService.GetTransactionsByAccountID(
		c.Request.Context(),
		accountID,
		pagination.Page,
		pagination.PerPage,
	)
	if err != nil {
		h.logger.Error("Failed to get transactions", "account_id", accountID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	var transactions []TransactionResponse
	for _, entry := range entries {
		transactions = append(transactions, mapEntryToResponse(entry))
	}

	RespondWithPaginatedData(c, http.StatusOK, transactions, pagination.Page, pagination.PerPage, int(total))
}

// mapEntryToResponse maps a ledger entry to a transaction response DTO
func mapEntryToResponse(entry *ledger.Entry) TransactionResponse {
	response := TransactionResponse{
		ID:        entry.ID.String(),
		AccountID: entry.AccountID.String(),
		Type:      string(entry.Type),
		Amount:    entry.Amount,
		Balance:   entry.Balance,
		IsVirtual: entry.IsVirtual,
		Note:      entry.Note,
		CreatedAt: entry.CreatedAt.Format(time.RFC3339),
	}

	if entry.StackID != nil {
		response.StackID = entry.StackID.String()
	}

	return response
}

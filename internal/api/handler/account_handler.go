package handler

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stackbudget-ledger/internal/api/service"
	"github.com/stackbudget-ledger/internal/domain/account"
	"github.com/stackbudget-ledger/internal/domain/preference"
	"github.com/stackbudget-ledger/internal/domain/shared"
	"github.com/stackbudget-ledger/internal/engine"
	"github.com/stackbudget-ledger/internal/platform/messaging/producers"
)

// AccountHandler handles HTTP requests for account operations
type AccountHandler struct {
	accountService service.AccountService
	allocEngine    service.AllocationEngine
	notifier       Notifier
	logger         *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, accountService service.AccountService, allocEngine service.AllocationEngine, notifier Notifier) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		allocEngine:    allocEngine,
		notifier:       notifier,
		logger:         logger,
	}
}

// Create handles creation of a new account
func (h *AccountHandler) Create(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondBadRequest(c, "Invalid user ID")
		return
	}

	acc, err := h.accountService.CreateAccount(c.Request.Context(), userID, req.Name, req.OpeningBalance)
	if err != nil {
		respondEngineError(c, h.logger, err)
		return
	}

	RespondCreated(c, mapAccountToResponse(acc))
}

// GetByID retrieves an account by its ID, returning 404 if not found
func (h *AccountHandler) GetByID(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "account")
	if !ok {
		return
	}

	acc, err := h.accountService.GetAccountByID(c.Request.Context(), id)
	if err != nil {
		respondEngineError(c, h.logger, err)
		return
	}

	RespondOK(c, mapAccountToResponse(acc))
}

// SetBalance records a manual balance entry. A balance drop that pushes the
// available balance negative triggers recovery; an unrecovered shortfall is
// surfaced as a notification and reported in the response.
func (h *AccountHandler) SetBalance(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "account")
	if !ok {
		return
	}

	var req SetBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.accountService.SetBalance(c.Request.Context(), id, *req.Balance, req.Note)
	if err != nil {
		respondEngineError(c, h.logger, err)
		return
	}

	h.notifyShortfall(c, id, result.Resolution)
	RespondOK(c, result)
}

// ResolveNegative re-runs negative-balance recovery for the account
func (h *AccountHandler) ResolveNegative(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "account")
	if !ok {
		return
	}

	result, err := h.accountService.ResolveNegative(c.Request.Context(), id)
	if err != nil {
		respondEngineError(c, h.logger, err)
		return
	}

	h.notifyShortfall(c, id, result)
	RespondOK(c, result)
}

// SetPreference stores the negative-balance recovery preference
func (h *AccountHandler) SetPreference(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "account")
	if !ok {
		return
	}

	var req UpdatePreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	behavior := preference.NegativeBalanceBehavior(req.NegativeBalanceBehavior)
	if err := h.accountService.SetNegativeBalanceBehavior(c.Request.Context(), id, behavior); err != nil {
		respondEngineError(c, h.logger, err)
		return
	}

	RespondOK(c, gin.H{"negative_balance_behavior": string(behavior)})
}

// Reorder renumbers the account's stack priorities to match the given order
func (h *AccountHandler) Reorder(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "account")
	if !ok {
		return
	}

	var req ReorderStacksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	orderedIDs := make([]uuid.UUID, 0, len(req.StackIDs))
	for _, raw := range req.StackIDs {
		stackID, err := uuid.Parse(raw)
		if err != nil {
			RespondBadRequest(c, "Invalid stack ID: "+raw)
			return
		}
		orderedIDs = append(orderedIDs, stackID)
	}

	if err := h.allocEngine.ReorderStacks(c.Request.Context(), id, orderedIDs); err != nil {
		respondEngineError(c, h.logger, err)
		return
	}

	RespondNoContent(c)
}

// notifyShortfall publishes a NEGATIVE_BALANCE notification when recovery
// left a deficit the user must act on
func (h *AccountHandler) notifyShortfall(c *gin.Context, accountID uuid.UUID, resolution *engine.NegativeBalanceResult) {
	if resolution == nil || resolution.Handled || resolution.Behavior == preference.NegativeAllowNegative {
		return
	}
	notify(c.Request.Context(), h.logger, h.notifier, producers.Notification{
		Kind:      shared.NotificationNegativeBalance,
		AccountID: accountID,
		Amount:    resolution.RemainingNegative,
		Message:   "Available balance is short by " + formatCents(resolution.RemainingNegative),
	})
}

// parseIDParam parses the :id path segment, responding 400 on failure
func parseIDParam(c *gin.Context, logger *slog.Logger, kind string) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		logger.Error("Invalid "+kind+" ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid "+kind+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// formatCents renders minor units as a decimal string, e.g. 2500 -> "25.00"
func formatCents(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return sign + strconv.FormatInt(amount/100, 10) + "." + padCents(amount%100)
}

func padCents(cents int64) string {
	if cents < 10 {
		return "0" + strconv.FormatInt(cents, 10)
	}
	return strconv.FormatInt(cents, 10)
}

// mapAccountToResponse maps an account entity to an account response DTO
func mapAccountToResponse(acc *account.Account) AccountResponse {
	return AccountResponse{
		ID:               acc.ID.String(),
		UserID:           acc.UserID.String(),
		Name:             acc.Name,
		Balance:          acc.Balance,
		AvailableBalance: acc.AvailableBalance,
		CreatedAt:        acc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        acc.UpdatedAt.Format(time.RFC3339),
	}
}

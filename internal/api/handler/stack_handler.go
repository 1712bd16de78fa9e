package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stackbudget-ledger/internal/api/service"
	"github.com/stackbudget-ledger/internal/domain/shared"
	"github.com/stackbudget-ledger/internal/domain/stack"
	"github.com/stackbudget-ledger/internal/engine"
)

// StackHandler handles HTTP requests for stack operations
type StackHandler struct {
	stackService service.StackService
	allocEngine  service.AllocationEngine
	notifier     Notifier
	logger       *slog.Logger
}

// NewStackHandler creates a new stack handler
func NewStackHandler(logger *slog.Logger, stackService service.StackService, allocEngine service.AllocationEngine, notifier Notifier) *StackHandler {
	return &StackHandler{
		stackService: stackService,
		allocEngine:  allocEngine,
		notifier:     notifier,
		logger:       logger,
	}
}

// Create handles creation of a new stack
func (h *StackHandler) Create(c *gin.Context) {
	var req CreateStackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	params := service.CreateStackParams{
		AccountID:             accountID,
		Name:                  req.Name,
		TargetAmount:          req.TargetAmount,
		TargetDueDate:         req.TargetDueDate,
		AutoAllocate:          req.AutoAllocate,
		AutoAllocateAmount:    req.AutoAllocateAmount,
		AutoAllocateFrequency: shared.Frequency(req.AutoAllocateFrequency),
		AutoAllocateNextDate:  req.AutoAllocateNextDate,
		ResetBehavior:         stack.ResetBehavior(req.ResetBehavior),
		RecurringPeriod:       shared.RecurringPeriod(req.RecurringPeriod),
		OverflowBehavior:      stack.OverflowBehavior(req.OverflowBehavior),
	}

	stk, err := h.stackService.CreateStack(c.Request.Context(), params)
	if err != nil {
		respondEngineError(c, h.logger, err)
		return
	}

	RespondCreated(c, mapStackToResponse(stk))
}

// GetByID retrieves a stack by its ID, returning 404 if not found
func (h *StackHandler) GetByID(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "stack")
	if !ok {
		return
	}

	stk, err := h.stackService.GetStackByID(c.Request.Context(), id)
	if err != nil {
		respondEngineError(c, h.logger, err)
		return
	}

	RespondOK(c, mapStackToResponse(stk))
}

// ListByAccount returns the account's stacks in priority order
func (h *StackHandler) ListByAccount(c *gin.Context) {
	accountID, ok := parseIDParam(c, h.logger, "account")
	if !ok {
		return
	}

	stacks, err := h.stackService.ListStacks(c.Request.Context(), accountID)
	if err != nil {
		respondEngineError(c, h.logger, err)
		return
	}

	responses := make([]StackResponse, 0, len(stacks))
	for _, stk := range stacks {
		responses = append(responses, mapStackToResponse(stk))
	}
	RespondOK(c, responses)
}

// Update edits goal, schedule, and behavior fields
func (h *StackHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "stack")
	if !ok {
		return
	}

	var req UpdateStackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	params := service.UpdateStackParams{
		Name:                 req.Name,
		TargetAmount:         req.TargetAmount,
		TargetDueDate:        req.TargetDueDate,
		ClearTarget:          req.ClearTarget,
		AutoAllocate:         req.AutoAllocate,
		AutoAllocateAmount:   req.AutoAllocateAmount,
		AutoAllocateNextDate: req.AutoAllocateNextDate,
		IsActive:             req.IsActive,
	}
	if req.AutoAllocateFrequency != nil {
		freq := shared.Frequency(*req.AutoAllocateFrequency)
		params.AutoAllocateFrequency = &freq
	}
	if req.ResetBehavior != nil {
		rb := stack.ResetBehavior(*req.ResetBehavior)
		params.ResetBehavior = &rb
	}
	if req.RecurringPeriod != nil {
		rp := shared.RecurringPeriod(*req.RecurringPeriod)
		params.RecurringPeriod = &rp
	}
	if req.OverflowBehavior != nil {
		ob := stack.OverflowBehavior(*req.OverflowBehavior)
		params.OverflowBehavior = &ob
	}

	stk, err := h.stackService.UpdateStack(c.Request.Context(), id, params)
	if err != nil {
		respondEngineError(c, h.logger, err)
		return
	}

	RespondOK(c, mapStackToResponse(stk))
}

// Delete removes a stack, returning any held funds to the available balance
func (h *StackHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "stack")
	if !ok {
		return
	}

	result, err := h.allocEngine.DeleteStack(c.Request.Context(), id)
	if err != nil {
		respondEngineError(c, h.logger, err)
		return
	}

	RespondOK(c, result)
}

// Allocate moves funds from the available balance into the stack
func (h *StackHandler) Allocate(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "stack")
	if !ok {
		return
	}

	var req AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	engineReq := engine.AllocateRequest{
		StackID: id,
		Amount:  req.Amount,
		Note:    req.Note,
	}
	if req.OverflowBehavior != nil {
		override := stack.OverflowBehavior(*req.OverflowBehavior)
		engineReq.OverflowOverride = &override
	}

	result, err := h.allocEngine.Allocate(c.Request.Context(), engineReq)
	if err != nil {
		respondEngineError(c, h.logger, err)
		return
	}

	notifyLifecycleEvents(c.Request.Context(), h.logger, h.notifier, result.Events)
	RespondOK(c, result)
}

// PreviewAllocate returns the overflow decision without committing anything
func (h *StackHandler) PreviewAllocate(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "stack")
	if !ok {
		return
	}

	var req AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	var override *stack.OverflowBehavior
	if req.OverflowBehavior != nil {
		ob := stack.OverflowBehavior(*req.OverflowBehavior)
		override = &ob
	}

	preview, err := h.allocEngine.PreviewAllocation(c.Request.Context(), id, req.Amount, override)
	if err != nil {
		respondEngineError(c, h.logger, err)
		return
	}

	RespondOK(c, preview)
}

// Deallocate moves funds from the stack back to the available balance
func (h *StackHandler) Deallocate(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "stack")
	if !ok {
		return
	}

	var req DeallocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.allocEngine.Deallocate(c.Request.Context(), id, req.Amount, req.Note)
	if err != nil {
		respondEngineError(c, h.logger, err)
		return
	}

	notifyLifecycleEvents(c.Request.Context(), h.logger, h.notifier, result.Events)
	RespondOK(c, result)
}

// Reset restarts a completed stack for its next cycle
func (h *StackHandler) Reset(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "stack")
	if !ok {
		return
	}

	var req ResetStackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	stk, err := h.allocEngine.ResetStack(c.Request.Context(), engine.ResetRequest{
		StackID:            id,
		TargetAmount:       req.TargetAmount,
		TargetDueDate:      req.TargetDueDate,
		AutoAllocateAmount: req.AutoAllocateAmount,
	})
	if err != nil {
		respondEngineError(c, h.logger, err)
		return
	}

	RespondOK(c, mapStackToResponse(stk))
}

// DismissReset declines a pending reset prompt, keeping the stack completed
func (h *StackHandler) DismissReset(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "stack")
	if !ok {
		return
	}

	stk, err := h.allocEngine.DismissReset(c.Request.Context(), id)
	if err != nil {
		respondEngineError(c, h.logger, err)
		return
	}

	RespondOK(c, mapStackToResponse(stk))
}

// PaymentPlan quotes the per-period contribution needed to reach the goal
func (h *StackHandler) PaymentPlan(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "stack")
	if !ok {
		return
	}

	freq := shared.Frequency(c.Query("frequency"))

	quote, err := h.allocEngine.CalculatePaymentForStack(c.Request.Context(), id, freq)
	if err != nil {
		respondEngineError(c, h.logger, err)
		return
	}

	RespondOK(c, quote)
}

// mapStackToResponse maps a stack entity to a stack response DTO
func mapStackToResponse(stk *stack.Stack) StackResponse {
	return StackResponse{
		ID:                    stk.ID.String(),
		AccountID:             stk.AccountID.String(),
		Name:                  stk.Name,
		CurrentAmount:         stk.CurrentAmount,
		TargetAmount:          stk.TargetAmount,
		TargetDueDate:         stk.TargetDueDate,
		Priority:              stk.Priority,
		IsActive:              stk.IsActive,
		AutoAllocate:          stk.AutoAllocate,
		AutoAllocateAmount:    stk.AutoAllocateAmount,
		AutoAllocateFrequency: string(stk.AutoAllocateFrequency),
		AutoAllocateNextDate:  stk.AutoAllocateNextDate,
		ResetBehavior:         string(stk.ResetBehavior),
		RecurringPeriod:       string(stk.RecurringPeriod),
		OverflowBehavior:      string(stk.OverflowBehavior),
		IsCompleted:           stk.IsCompleted,
		PendingReset:          stk.PendingReset,
		CreatedAt:             stk.CreatedAt.Format(time.RFC3339),
		UpdatedAt:             stk.UpdatedAt.Format(time.RFC3339),
	}
}

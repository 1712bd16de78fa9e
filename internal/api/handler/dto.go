package handler

import "time"

// CreateAccountRequest represents a request to create a new account
type CreateAccountRequest struct {
	UserID         string `json:"user_id" binding:"required,uuid"`
	Name           string `json:"name" binding:"required"`
	OpeningBalance int64  `json:"opening_balance" binding:"min=0"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID               string `json:"id"`
	UserID           string `json:"user_id"`
	Name             string `json:"name"`
	Balance          int64  `json:"balance"`
	AvailableBalance int64  `json:"available_balance"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// SetBalanceRequest records a manual balance entry or an external sync.
// Balance is a pointer so an explicit zero is distinguishable from absent.
type SetBalanceRequest struct {
	Balance *int64 `json:"balance" binding:"required"`
	Note    string `json:"note"`
}

// UpdatePreferenceRequest sets the negative-balance recovery preference
type UpdatePreferenceRequest struct {
	NegativeBalanceBehavior string `json:"negative_balance_behavior" binding:"required,oneof=auto_deallocate notify_only allow_negative"`
}

// CreateStackRequest represents a request to create a new stack
type CreateStackRequest struct {
	AccountID             string     `json:"account_id" binding:"required,uuid"`
	Name                  string     `json:"name" binding:"required"`
	TargetAmount          *int64     `json:"target_amount,omitempty" binding:"omitempty,gt=0"`
	TargetDueDate         *time.Time `json:"target_due_date,omitempty"`
	AutoAllocate          bool       `json:"auto_allocate"`
	AutoAllocateAmount    int64      `json:"auto_allocate_amount,omitempty" binding:"omitempty,gt=0"`
	AutoAllocateFrequency string     `json:"auto_allocate_frequency,omitempty" binding:"omitempty,oneof=daily every_other_day weekly bi_weekly bi_monthly monthly semi_annually annually"`
	AutoAllocateNextDate  *time.Time `json:"auto_allocate_next_date,omitempty"`
	ResetBehavior         string     `json:"reset_behavior,omitempty" binding:"omitempty,oneof=none auto_reset ask_reset delete"`
	RecurringPeriod       string     `json:"recurring_period,omitempty" binding:"omitempty,oneof=none weekly bi_weekly bi_monthly monthly quarterly semi_annually annually"`
	OverflowBehavior      string     `json:"overflow_behavior,omitempty" binding:"omitempty,oneof=next_priority available_balance keep_in_stack"`
}

// UpdateStackRequest edits stack fields; absent fields are left unchanged
type UpdateStackRequest struct {
	Name                  *string    `json:"name,omitempty" binding:"omitempty,min=1"`
	TargetAmount          *int64     `json:"target_amount,omitempty" binding:"omitempty,gt=0"`
	TargetDueDate         *time.Time `json:"target_due_date,omitempty"`
	ClearTarget           bool       `json:"clear_target,omitempty"`
	AutoAllocate          *bool      `json:"auto_allocate,omitempty"`
	AutoAllocateAmount    *int64     `json:"auto_allocate_amount,omitempty" binding:"omitempty,gt=0"`
	AutoAllocateFrequency *string    `json:"auto_allocate_frequency,omitempty" binding:"omitempty,oneof=daily every_other_day weekly bi_weekly bi_monthly monthly semi_annually annually"`
	AutoAllocateNextDate  *time.Time `json:"auto_allocate_next_date,omitempty"`
	ResetBehavior         *string    `json:"reset_behavior,omitempty" binding:"omitempty,oneof=none auto_reset ask_reset delete"`
	RecurringPeriod       *string    `json:"recurring_period,omitempty" binding:"omitempty,oneof=none weekly bi_weekly bi_monthly monthly quarterly semi_annually annually"`
	OverflowBehavior      *string    `json:"overflow_behavior,omitempty" binding:"omitempty,oneof=next_priority available_balance keep_in_stack"`
	IsActive              *bool      `json:"is_active,omitempty"`
}

// StackResponse represents a stack in API responses
type StackResponse struct {
	ID                    string     `json:"id"`
	AccountID             string     `json:"account_id"`
	Name                  string     `json:"name"`
	CurrentAmount         int64      `json:"current_amount"`
	TargetAmount          *int64     `json:"target_amount,omitempty"`
	TargetDueDate         *time.Time `json:"target_due_date,omitempty"`
	Priority              int        `json:"priority"`
	IsActive              bool       `json:"is_active"`
	AutoAllocate          bool       `json:"auto_allocate"`
	AutoAllocateAmount    int64      `json:"auto_allocate_amount,omitempty"`
	AutoAllocateFrequency string     `json:"auto_allocate_frequency,omitempty"`
	AutoAllocateNextDate  *time.Time `json:"auto_allocate_next_date,omitempty"`
	ResetBehavior         string     `json:"reset_behavior"`
	RecurringPeriod       string     `json:"recurring_period"`
	OverflowBehavior      string     `json:"overflow_behavior"`
	IsCompleted           bool       `json:"is_completed"`
	PendingReset          bool       `json:"pending_reset"`
	CreatedAt             string     `json:"created_at"`
	UpdatedAt             string     `json:"updated_at"`
}

// AllocateRequest represents a request to move funds into a stack
type AllocateRequest struct {
	Amount           int64   `json:"amount" binding:"required,gt=0"`
	OverflowBehavior *string `json:"overflow_behavior,omitempty" binding:"omitempty,oneof=next_priority available_balance keep_in_stack"`
	Note             string  `json:"note"`
}

// DeallocateRequest represents a request to move funds out of a stack
type DeallocateRequest struct {
	Amount int64  `json:"amount" binding:"required,gt=0"`
	Note   string `json:"note"`
}

// ResetStackRequest restarts a completed stack, optionally overriding the goal
type ResetStackRequest struct {
	TargetAmount       *int64     `json:"target_amount,omitempty" binding:"omitempty,gt=0"`
	TargetDueDate      *time.Time `json:"target_due_date,omitempty"`
	AutoAllocateAmount *int64     `json:"auto_allocate_amount,omitempty" binding:"omitempty,gt=0"`
}

// ReorderStacksRequest renumbers an account's stack priorities
type ReorderStacksRequest struct {
	StackIDs []string `json:"stack_ids" binding:"required,min=1,dive,uuid"`
}

// TransactionResponse represents a history entry in API responses
type TransactionResponse struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	StackID   string `json:"stack_id,omitempty"`
	Type      string `json:"type"`
	Amount    int64  `json:"amount"`
	Balance   int64  `json:"balance"`
	IsVirtual bool   `json:"is_virtual"`
	Note      string `json:"note,omitempty"`
	CreatedAt string `json:"created_at"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

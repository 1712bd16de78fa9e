package stack

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stackbudget-ledger/internal/domain/shared"
)

// Common errors
var (
	ErrInsufficientStackFunds = errors.New("cannot remove more than the stack's current amount")
	ErrEmptyName              = errors.New("stack name cannot be empty")
	ErrStackInactive          = errors.New("stack is not active")
	ErrNotCompleted           = errors.New("stack has not reached its target")
	ErrNoPendingReset         = errors.New("stack has no reset pending")
	ErrInvalidBehavior        = errors.New("unknown behavior value")
)

// OverflowBehavior decides where allocation excess beyond the target goes
type OverflowBehavior string

const (
	OverflowNextPriority     OverflowBehavior = "next_priority"
	OverflowAvailableBalance OverflowBehavior = "available_balance"
	OverflowKeepInStack      OverflowBehavior = "keep_in_stack"
)

// IsValid reports whether the behavior is one of the known values
func (b OverflowBehavior) IsValid() bool {
	switch b {
	case OverflowNextPriority, OverflowAvailableBalance, OverflowKeepInStack:
		return true
	}
	return false
}

// ResetBehavior decides what happens when a stack reaches its target
type ResetBehavior string

const (
	ResetNone   ResetBehavior = "none"
	ResetAuto   ResetBehavior = "auto_reset"
	ResetAsk    ResetBehavior = "ask_reset"
	ResetDelete ResetBehavior = "delete"
)

// IsValid reports whether the behavior is one of the known values
func (b ResetBehavior) IsValid() bool {
	switch b {
	case ResetNone, ResetAuto, ResetAsk, ResetDelete:
		return true
	}
	return false
}

// Stack is a named sub-allocation of an account's funds with its own goal
// and rules. CurrentAmount never goes negative, and the sum of all active
// stacks' CurrentAmount never exceeds the account balance.
type Stack struct {
	ID                    uuid.UUID              `json:"id"`
	AccountID             uuid.UUID              `json:"account_id"`
	Name                  string                 `json:"name"`
	CurrentAmount         int64                  `json:"current_amount"` // Stored in cents/minor units
	TargetAmount          *int64                 `json:"target_amount,omitempty"`
	TargetDueDate         *time.Time             `json:"target_due_date,omitempty"`
	Priority              int                    `json:"priority"` // Lower value = funded first, drained last
	IsActive              bool                   `json:"is_active"`
	AutoAllocate          bool                   `json:"auto_allocate"`
	AutoAllocateAmount    int64                  `json:"auto_allocate_amount"`
	AutoAllocateFrequency shared.Frequency       `json:"auto_allocate_frequency"`
	AutoAllocateNextDate  *time.Time             `json:"auto_allocate_next_date,omitempty"`
	ResetBehavior         ResetBehavior          `json:"reset_behavior"`
	RecurringPeriod       shared.RecurringPeriod `json:"recurring_period"`
	OverflowBehavior      OverflowBehavior       `json:"overflow_behavior"`
	IsCompleted           bool                   `json:"is_completed"`
	PendingReset          bool                   `json:"pending_reset"`
	Version               int                    `json:"version"`
	CreatedAt             time.Time              `json:"created_at"`
	UpdatedAt             time.Time              `json:"updated_at"`
}

// NewStack creates an empty stack for the given account. Priority is assigned
// by the caller, which keeps priorities dense and unique per account.
func NewStack(accountID uuid.UUID, name string, priority int) (*Stack, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	return &Stack{
		ID:               uuid.New(),
		AccountID:        accountID,
		Name:             name,
		CurrentAmount:    0,
		Priority:         priority,
		IsActive:         true,
		ResetBehavior:    ResetNone,
		RecurringPeriod:  shared.RecurringPeriodNone,
		OverflowBehavior: OverflowAvailableBalance,
		Version:          1,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}, nil
}

// Validate checks the behavior and schedule fields for consistency
func (s *Stack) Validate() error {
	if s.Name == "" {
		return ErrEmptyName
	}
	if !s.OverflowBehavior.IsValid() || !s.ResetBehavior.IsValid() || !s.RecurringPeriod.IsValid() {
		return ErrInvalidBehavior
	}
	if s.TargetAmount != nil && *s.TargetAmount <= 0 {
		return errors.New("target amount must be positive when set")
	}
	if s.AutoAllocate {
		if s.AutoAllocateAmount <= 0 {
			return errors.New("auto-allocate amount must be positive")
		}
		if !s.AutoAllocateFrequency.IsValid() {
			return errors.New("auto-allocate frequency is required")
		}
		if s.AutoAllocateNextDate == nil {
			return errors.New("auto-allocate next date is required")
		}
	}
	return nil
}

// HasTarget reports whether the stack carries a savings goal
func (s *Stack) HasTarget() bool {
	return s.TargetAmount != nil && *s.TargetAmount > 0
}

// RemainingToTarget returns the distance to the target, never negative.
// Stacks without a target report zero.
func (s *Stack) RemainingToTarget() int64 {
	if !s.HasTarget() {
		return 0
	}
	remaining := *s.TargetAmount - s.CurrentAmount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TargetReached reports whether the current amount meets or exceeds the target
func (s *Stack) TargetReached() bool {
	return s.HasTarget() && s.CurrentAmount >= *s.TargetAmount
}

// EffectiveResetBehavior returns the behavior applied on completion.
// Recurring stacks always auto-reset so the next cycle starts without a prompt.
func (s *Stack) EffectiveResetBehavior() ResetBehavior {
	if s.RecurringPeriod != shared.RecurringPeriodNone {
		return ResetAuto
	}
	return s.ResetBehavior
}

// MarkCompleted transitions the stack to the completed state, queueing a
// reset prompt unless the behavior opts out of resets entirely.
func (s *Stack) MarkCompleted() {
	s.IsCompleted = true
	if s.RecurringPeriod != shared.RecurringPeriodNone {
		s.ResetBehavior = ResetAuto
	}
	if s.ResetBehavior != ResetNone {
		s.PendingReset = true
	}
	s.UpdatedAt = time.Now()
	s.Version++
}

// ClearCompletion returns a reset stack to the active state. The current
// amount intentionally carries over into the new cycle.
func (s *Stack) ClearCompletion() {
	s.IsCompleted = false
	s.PendingReset = false
	s.UpdatedAt = time.Now()
	s.Version++
}

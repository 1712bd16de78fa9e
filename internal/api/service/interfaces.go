package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stackbudget-ledger/internal/domain/account"
	"github.com/stackbudget-ledger/internal/domain/ledger"
	"github.com/stackbudget-ledger/internal/domain/preference"
	"github.com/stackbudget-ledger/internal/domain/shared"
	"github.com/stackbudget-ledger/internal/domain/stack"
	"github.com/stackbudget-ledger/internal/engine"
)

// BalanceUpdateResult reports a manual balance change and, when the change
// pushed the available balance negative, the outcome of the recovery run.
type BalanceUpdateResult struct {
	Account    *account.Account              `json:"account"`
	Delta      int64                         `json:"delta"`
	Resolution *engine.NegativeBalanceResult `json:"resolution,omitempty"`
}

// AccountService defines the interface for account operations
type AccountService interface {
	// CreateAccount creates a new account with the given opening balance
	CreateAccount(ctx context.Context, userID uuid.UUID, name string, openingBalance int64) (*account.Account, error)

	// GetAccountByID retrieves an account by its ID
	// Returns ErrAccountNotFound if the account doesn't exist
	GetAccountByID(ctx context.Context, id uuid.UUID) (*account.Account, error)

	// SetBalance records a manual balance entry or an external sync. The delta
	// flows through the available balance; a resulting negative available
	// balance triggers negative-balance resolution per the user's preference.
	SetBalance(ctx context.Context, accountID uuid.UUID, newBalance int64, note string) (*BalanceUpdateResult, error)

	// ResolveNegative re-runs negative-balance recovery for an account whose
	// available balance is still below zero
	ResolveNegative(ctx context.Context, accountID uuid.UUID) (*engine.NegativeBalanceResult, error)

	// SetNegativeBalanceBehavior stores the account owner's recovery preference
	SetNegativeBalanceBehavior(ctx context.Context, accountID uuid.UUID, behavior preference.NegativeBalanceBehavior) error
}

// CreateStackParams carries the optional goal and schedule fields for a new stack
type CreateStackParams struct {
	AccountID             uuid.UUID
	Name                  string
	TargetAmount          *int64
	TargetDueDate         *time.Time
	AutoAllocate          bool
	AutoAllocateAmount    int64
	AutoAllocateFrequency shared.Frequency
	AutoAllocateNextDate  *time.Time
	ResetBehavior         stack.ResetBehavior
	RecurringPeriod       shared.RecurringPeriod
	OverflowBehavior      stack.OverflowBehavior
}

// UpdateStackParams carries the editable stack fields; nil means unchanged
type UpdateStackParams struct {
	Name                  *string
	TargetAmount          *int64
	TargetDueDate         *time.Time
	ClearTarget           bool
	AutoAllocate          *bool
	AutoAllocateAmount    *int64
	AutoAllocateFrequency *shared.Frequency
	AutoAllocateNextDate  *time.Time
	ResetBehavior         *stack.ResetBehavior
	RecurringPeriod       *shared.RecurringPeriod
	OverflowBehavior      *stack.OverflowBehavior
	IsActive              *bool
}

// StackService defines the interface for stack CRUD operations. Balance
// movements in and out of stacks go through the engine, not this service.
type StackService interface {
	// CreateStack creates an empty stack at the end of the account's priority order
	CreateStack(ctx context.Context, params CreateStackParams) (*stack.Stack, error)

	// GetStackByID retrieves a stack by its ID
	// Returns ErrStackNotFound if the stack doesn't exist
	GetStackByID(ctx context.Context, id uuid.UUID) (*stack.Stack, error)

	// ListStacks returns the account's stacks in priority order
	ListStacks(ctx context.Context, accountID uuid.UUID) ([]*stack.Stack, error)

	// UpdateStack edits goal, schedule, and behavior fields
	UpdateStack(ctx context.Context, id uuid.UUID, params UpdateStackParams) (*stack.Stack, error)
}

// TransactionService serves the transaction-history read model
type TransactionService interface {
	// GetTransactionByID retrieves a single history entry
	// Returns nil if the entry has not been mirrored yet
	GetTransactionByID(ctx context.Context, entryID uuid.UUID) (*ledger.Entry, error)

	// GetTransactionsByAccountID retrieves paginated history for an account
	// Returns entries, total count, and any error
	GetTransactionsByAccountID(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*ledger.Entry, int64, error)
}

// AllocationEngine is the slice of the engine the HTTP handlers drive
type AllocationEngine interface {
	Allocate(ctx context.Context, req engine.AllocateRequest) (*engine.AllocationResult, error)
	Deallocate(ctx context.Context, stackID uuid.UUID, amount int64, note string) (*engine.DeallocationResult, error)
	PreviewAllocation(ctx context.Context, stackID uuid.UUID, amount int64, override *stack.OverflowBehavior) (*engine.AllocationPreview, error)
	ResetStack(ctx context.Context, req engine.ResetRequest) (*stack.Stack, error)
	DismissReset(ctx context.Context, stackID uuid.UUID) (*stack.Stack, error)
	DeleteStack(ctx context.Context, stackID uuid.UUID) (*engine.DeleteResult, error)
	ReorderStacks(ctx context.Context, accountID uuid.UUID, orderedIDs []uuid.UUID) error
	CalculatePaymentForStack(ctx context.Context, stackID uuid.UUID, freq shared.Frequency) (*engine.PaymentQuote, error)
}

package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stackbudget-ledger/internal/domain/account"
	"github.com/stackbudget-ledger/internal/domain/stack"
	"github.com/stackbudget-ledger/internal/engine"
)

// StackServiceImpl implements the StackService interface
type StackServiceImpl struct {
	db          engine.TxRunner
	accountRepo account.Repository
	stackRepo   stack.Repository
}

// NewStackService creates a new stack service
func NewStackService(db engine.TxRunner, accountRepo account.Repository, stackRepo stack.Repository) StackService {
	return &StackServiceImpl{
		db:          db,
		accountRepo: accountRepo,
		stackRepo:   stackRepo,
	}
}

// CreateStack creates an empty stack appended to the account's priority order.
// Priority assignment and insert share a transaction so concurrent creates
// cannot claim the same priority.
func (s *StackServiceImpl) CreateStack(ctx context.Context, params CreateStackParams) (*stack.Stack, error) {
	if _, err := s.accountRepo.GetByID(ctx, params.AccountID); err != nil {
		return nil, err
	}

	var created *stack.Stack
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		stacks := s.stackRepo.WithTx(tx)

		maxPriority, err := stacks.MaxPriority(ctx, params.AccountID)
		if err != nil {
			return err
		}

		stk, err := stack.NewStack(params.AccountID, params.Name, maxPriority+1)
		if err != nil {
			return err
		}

		stk.TargetAmount = params.TargetAmount
		stk.TargetDueDate = params.TargetDueDate
		stk.AutoAllocate = params.AutoAllocate
		stk.AutoAllocateAmount = params.AutoAllocateAmount
		stk.AutoAllocateFrequency = params.AutoAllocateFrequency
		stk.AutoAllocateNextDate = params.AutoAllocateNextDate
		if params.ResetBehavior != "" {
			stk.ResetBehavior = params.ResetBehavior
		}
		if params.RecurringPeriod != "" {
			stk.RecurringPeriod = params.RecurringPeriod
		}
		if params.OverflowBehavior != "" {
			stk.OverflowBehavior = params.OverflowBehavior
		}

		if err := stk.Validate(); err != nil {
			return err
		}

		if err := stacks.Create(ctx, stk); err != nil {
			return err
		}
		created = stk
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetStackByID retrieves a stack by its ID, returns ErrStackNotFound if not found
func (s *StackServiceImpl) GetStackByID(ctx context.Context, id uuid.UUID) (*stack.Stack, error) {
	return s.stackRepo.GetByID(ctx, id)
}

// ListStacks returns the account's stacks in priority order
func (s *StackServiceImpl) ListStacks(ctx context.Context, accountID uuid.UUID) ([]*stack.Stack, error) {
	return s.stackRepo.ListByAccountID(ctx, accountID)
}

// UpdateStack edits goal, schedule, and behavior fields under a row lock
func (s *StackServiceImpl) UpdateStack(ctx context.Context, id uuid.UUID, params UpdateStackParams) (*stack.Stack, error) {
	var updated *stack.Stack
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		stacks := s.stackRepo.WithTx(tx)
		stk, err := stacks.LockForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if params.Name != nil {
			stk.Name = *params.Name
		}
		if params.ClearTarget {
			stk.TargetAmount = nil
			stk.TargetDueDate = nil
		} else {
			if params.TargetAmount != nil {
				stk.TargetAmount = params.TargetAmount
			}
			if params.TargetDueDate != nil {
				stk.TargetDueDate = params.TargetDueDate
			}
		}
		if params.AutoAllocate != nil {
			stk.AutoAllocate = *params.AutoAllocate
		}
		if params.AutoAllocateAmount != nil {
			stk.AutoAllocateAmount = *params.AutoAllocateAmount
		}
		if params.AutoAllocateFrequency != nil {
			stk.AutoAllocateFrequency = *params.AutoAllocateFrequency
		}
		if params.AutoAllocateNextDate != nil {
			stk.AutoAllocateNextDate = params.AutoAllocateNextDate
		}
		if params.ResetBehavior != nil {
			stk.ResetBehavior = *params.ResetBehavior
		}
		if params.RecurringPeriod != nil {
			stk.RecurringPeriod = *params.RecurringPeriod
		}
		if params.OverflowBehavior != nil {
			stk.OverflowBehavior = *params.OverflowBehavior
		}
		if params.IsActive != nil {
			stk.IsActive = *params.IsActive
		}

		if err := stk.Validate(); err != nil {
			return err
		}
		stk.Version++
		stk.UpdatedAt = time.Now()

		if err := stacks.Update(ctx, stk); err != nil {
			return err
		}
		updated = stk
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

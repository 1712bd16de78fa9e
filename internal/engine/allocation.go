package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stackbudget-ledger/internal/domain/account"
	"github.com/stackbudget-ledger/internal/domain/ledger"
	"github.com/stackbudget-ledger/internal/domain/stack"
)

// AllocateRequest moves funds from the account's available balance into a
// stack. A nil OverflowOverride uses the stack's stored overflow behavior.
type AllocateRequest struct {
	StackID          uuid.UUID
	Amount           int64
	OverflowOverride *stack.OverflowBehavior
	Note             string
}

// Redirect records an overflow allocation into a next-priority stack
type Redirect struct {
	StackID   uuid.UUID `json:"stack_id"`
	StackName string    `json:"stack_name"`
	Amount    int64     `json:"amount"`
}

// AllocationResult reports where the requested amount ended up
type AllocationResult struct {
	StackID       uuid.UUID        `json:"stack_id"`
	Applied       int64            `json:"applied"`        // placed into the requested stack
	Overflow      int64            `json:"overflow"`       // excess beyond the stack's target
	Outcome       OverflowOutcome  `json:"outcome"`        // disposition of the excess
	Unallocated   int64            `json:"unallocated"`    // excess that stayed in the available balance
	CurrentAmount int64            `json:"current_amount"` // stack amount after the operation
	Redirects     []Redirect       `json:"redirects,omitempty"`
	Events        []LifecycleEvent `json:"events,omitempty"`
}

// DeallocationResult reports a removal of funds from a stack
type DeallocationResult struct {
	StackID       uuid.UUID        `json:"stack_id"`
	Amount        int64            `json:"amount"`
	CurrentAmount int64            `json:"current_amount"`
	Events        []LifecycleEvent `json:"events,omitempty"`
}

// AllocationPreview surfaces the overflow decision without committing, so an
// interactive caller can confirm or override the stack's stored behavior.
type AllocationPreview struct {
	StackID       uuid.UUID              `json:"stack_id"`
	Applied       int64                  `json:"applied"`
	Overflow      int64                  `json:"overflow"`
	Behavior      stack.OverflowBehavior `json:"behavior"`
	Outcome       OverflowOutcome        `json:"outcome"`
	NextStackID   *uuid.UUID             `json:"next_stack_id,omitempty"`
	NextStackName string                 `json:"next_stack_name,omitempty"`
}

// Allocate moves amount from the account's available balance into the stack,
// applying overflow rules when the stack's target would be exceeded. All
// effects, including any overflow redirects and lifecycle transitions,
// commit in one transaction.
func (s *Service) Allocate(ctx context.Context, req AllocateRequest) (*AllocationResult, error) {
	if req.Amount <= 0 {
		return nil, account.ErrInvalidAmount
	}

	var result *AllocationResult
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var err error
		result, err = s.allocateInTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("allocation committed",
		"stack_id", req.StackID.String(),
		"amount", req.Amount,
		"applied", result.Applied,
		"overflow", result.Overflow,
		"outcome", string(result.Outcome),
	)
	return result, nil
}

func (s *Service) allocateInTx(ctx context.Context, tx pgx.Tx, req AllocateRequest) (*AllocationResult, error) {
	stk, err := s.stacks.WithTx(tx).LockForUpdate(ctx, req.StackID)
	if err != nil {
		return nil, err
	}
	if !stk.IsActive {
		return nil, stack.ErrStackInactive
	}

	decision := DecideOverflow(stk, req.Amount, req.OverflowOverride)
	result := &AllocationResult{
		StackID:  stk.ID,
		Overflow: decision.Overflow,
		Outcome:  decision.Outcome,
	}

	note := req.Note
	if note == "" {
		note = fmt.Sprintf("Allocation to %s", stk.Name)
	}
	if decision.Applied > 0 {
		if _, err := s.applyStackDelta(ctx, tx, stk, decision.Applied, ledger.EntryTypeAllocation, note); err != nil {
			return nil, err
		}
		result.Applied = decision.Applied
	}

	events, err := s.handleCompletion(ctx, tx, stk)
	if err != nil {
		return nil, err
	}
	result.Events = append(result.Events, events...)

	switch decision.Outcome {
	case OutcomeRedirected:
		if err := s.redirectOverflow(ctx, tx, stk, decision.Overflow, result); err != nil {
			return nil, err
		}
	case OutcomeLeftAvailable:
		result.Unallocated = decision.Overflow
	}

	result.CurrentAmount = stk.CurrentAmount
	return result, nil
}

// redirectOverflow walks down the priority order, offering the overflow to
// each next stack subject to that stack's own overflow rules. Priorities are
// strictly increasing along the walk, so it terminates. Excess that no stack
// accepts stays in the available balance.
func (s *Service) redirectOverflow(ctx context.Context, tx pgx.Tx, from *stack.Stack, overflow int64, result *AllocationResult) error {
	stacks := s.stacks.WithTx(tx)
	cur := from
	remaining := overflow

	for remaining > 0 {
		next, err := stacks.NextByPriority(ctx, cur.AccountID, cur.Priority)
		if err != nil {
			return err
		}
		if next == nil {
			// No next-priority stack: fall back to available_balance behavior.
			result.Unallocated += remaining
			return nil
		}

		decision := DecideOverflow(next, remaining, nil)
		if decision.Applied > 0 {
			note := fmt.Sprintf("Overflow from %s", cur.Name)
			if _, err := s.applyStackDelta(ctx, tx, next, decision.Applied, ledger.EntryTypeAllocation, note); err != nil {
				return err
			}
			result.Redirects = append(result.Redirects, Redirect{
				StackID:   next.ID,
				StackName: next.Name,
				Amount:    decision.Applied,
			})
		}

		events, err := s.handleCompletion(ctx, tx, next)
		if err != nil {
			return err
		}
		result.Events = append(result.Events, events...)

		switch decision.Outcome {
		case OutcomeRedirected:
			remaining = decision.Overflow
			cur = next
		case OutcomeLeftAvailable:
			result.Unallocated += decision.Overflow
			remaining = 0
		default:
			remaining = 0
		}
	}
	return nil
}

// Deallocate moves amount out of the stack back into the account's available
// balance. Removing more than the stack holds fails without side effects.
func (s *Service) Deallocate(ctx context.Context, stackID uuid.UUID, amount int64, note string) (*DeallocationResult, error) {
	if amount <= 0 {
		return nil, account.ErrInvalidAmount
	}

	var result *DeallocationResult
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		stk, err := s.stacks.WithTx(tx).LockForUpdate(ctx, stackID)
		if err != nil {
			return err
		}
		if amount > stk.CurrentAmount {
			return stack.ErrInsufficientStackFunds
		}

		if note == "" {
			note = fmt.Sprintf("Removed from %s", stk.Name)
		}
		if _, err := s.applyStackDelta(ctx, tx, stk, -amount, ledger.EntryTypeDeduction, note); err != nil {
			return err
		}

		events, err := s.handleCompletion(ctx, tx, stk)
		if err != nil {
			return err
		}

		result = &DeallocationResult{
			StackID:       stk.ID,
			Amount:        amount,
			CurrentAmount: stk.CurrentAmount,
			Events:        events,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deallocation committed", "stack_id", stackID.String(), "amount", amount)
	return result, nil
}

// PreviewAllocation computes the overflow decision for an allocation without
// committing anything. Interactive callers show this to the user and pass an
// override to Allocate if the user rejects the stack's stored behavior.
func (s *Service) PreviewAllocation(ctx context.Context, stackID uuid.UUID, amount int64, override *stack.OverflowBehavior) (*AllocationPreview, error) {
	if amount <= 0 {
		return nil, account.ErrInvalidAmount
	}

	stk, err := s.stacks.GetByID(ctx, stackID)
	if err != nil {
		return nil, err
	}

	behavior := stk.OverflowBehavior
	if override != nil {
		behavior = *override
	}
	decision := DecideOverflow(stk, amount, override)

	preview := &AllocationPreview{
		StackID:  stk.ID,
		Applied:  decision.Applied,
		Overflow: decision.Overflow,
		Behavior: behavior,
		Outcome:  decision.Outcome,
	}

	if decision.Outcome == OutcomeRedirected {
		next, err := s.stacks.NextByPriority(ctx, stk.AccountID, stk.Priority)
		if err != nil {
			return nil, err
		}
		if next == nil {
			preview.Outcome = OutcomeLeftAvailable
		} else {
			preview.NextStackID = &next.ID
			preview.NextStackName = next.Name
		}
	}

	return preview, nil
}

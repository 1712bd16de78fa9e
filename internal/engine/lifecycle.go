package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stackbudget-ledger/internal/domain/ledger"
	"github.com/stackbudget-ledger/internal/domain/shared"
	"github.com/stackbudget-ledger/internal/domain/stack"
)

// ResetRequest carries optional overrides for resetting a completed stack
// into its next cycle. Nil fields keep the stack's current values.
type ResetRequest struct {
	StackID            uuid.UUID
	TargetAmount       *int64
	TargetDueDate      *time.Time
	AutoAllocateAmount *int64
}

// DeleteResult reports a stack deletion and the funds returned to the
// available balance
type DeleteResult struct {
	StackID        uuid.UUID `json:"stack_id"`
	ReturnedAmount int64     `json:"returned_amount"`
}

// handleCompletion fires the active → completed transition when the stack has
// reached its target. Recurring stacks auto-reset in the same transaction;
// delete-on-complete returns the funds and removes the stack. Already
// completed stacks are left alone.
func (s *Service) handleCompletion(ctx context.Context, tx pgx.Tx, stk *stack.Stack) ([]LifecycleEvent, error) {
	if stk.IsCompleted || !stk.TargetReached() {
		return nil, nil
	}

	stk.MarkCompleted()
	if err := s.stacks.WithTx(tx).Update(ctx, stk); err != nil {
		return nil, err
	}

	events := []LifecycleEvent{{StackID: stk.ID, AccountID: stk.AccountID, StackName: stk.Name, Kind: EventCompleted}}

	switch stk.ResetBehavior {
	case stack.ResetAuto:
		if err := s.resetInTx(ctx, tx, stk, ResetRequest{}); err != nil {
			return nil, err
		}
		events = append(events, LifecycleEvent{StackID: stk.ID, AccountID: stk.AccountID, StackName: stk.Name, Kind: EventAutoReset})
	case stack.ResetAsk:
		events = append(events, LifecycleEvent{StackID: stk.ID, AccountID: stk.AccountID, StackName: stk.Name, Kind: EventResetPrompt})
	case stack.ResetDelete:
		if _, err := s.deleteInTx(ctx, tx, stk); err != nil {
			return nil, err
		}
		events = append(events, LifecycleEvent{StackID: stk.ID, AccountID: stk.AccountID, StackName: stk.Name, Kind: EventDeleted})
	}

	return events, nil
}

// resetInTx advances a completed stack into its next cycle. The due date is
// rolled forward period by period until it lands strictly in the future, the
// completion flags clear, and the current amount carries over unchanged.
func (s *Service) resetInTx(ctx context.Context, tx pgx.Tx, stk *stack.Stack, req ResetRequest) error {
	now := s.now()

	if req.TargetAmount != nil {
		stk.TargetAmount = req.TargetAmount
	}

	if req.TargetDueDate != nil {
		stk.TargetDueDate = req.TargetDueDate
	} else if stk.TargetDueDate != nil {
		next := s.rollForwardDueDate(*stk.TargetDueDate, stk, now)
		stk.TargetDueDate = &next
	}

	stk.ClearCompletion()

	if req.AutoAllocateAmount != nil {
		stk.AutoAllocateAmount = *req.AutoAllocateAmount
	} else if stk.AutoAllocate && stk.HasTarget() && stk.TargetDueDate != nil {
		// Size the next cycle's contribution from the new due date.
		quote := CalculatePayment(*stk.TargetAmount, stk.CurrentAmount, *stk.TargetDueDate, stk.AutoAllocateFrequency, nil, now)
		if quote.AmountPerPayment > 0 {
			stk.AutoAllocateAmount = quote.AmountPerPayment
		}
	}

	return s.stacks.WithTx(tx).Update(ctx, stk)
}

// rollForwardDueDate advances due by the stack's recurring period, or by its
// auto-allocate frequency when no recurring period is set. A date already in
// the future is still advanced at least one period when it is the current
// cycle's due date in the past or today.
func (s *Service) rollForwardDueDate(due time.Time, stk *stack.Stack, now time.Time) time.Time {
	if stk.RecurringPeriod != shared.RecurringPeriodNone {
		return stk.RecurringPeriod.RollForward(due, now)
	}
	if stk.AutoAllocateFrequency.IsValid() {
		next := due
		for !next.After(now) {
			next = stk.AutoAllocateFrequency.Next(next)
		}
		return next
	}
	return due
}

// ResetStack resets a completed stack into its next cycle, honoring any
// caller-supplied overrides for target, due date, and contribution size
func (s *Service) ResetStack(ctx context.Context, req ResetRequest) (*stack.Stack, error) {
	var result *stack.Stack
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		stk, err := s.stacks.WithTx(tx).LockForUpdate(ctx, req.StackID)
		if err != nil {
			return err
		}
		if !stk.IsCompleted {
			return stack.ErrNotCompleted
		}
		if err := s.resetInTx(ctx, tx, stk, req); err != nil {
			return err
		}
		result = stk
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stack reset", "stack_id", req.StackID.String())
	return result, nil
}

// DismissReset settles a completed stack: the reset prompt clears and the
// stack stays completed and inert until manually edited
func (s *Service) DismissReset(ctx context.Context, stackID uuid.UUID) (*stack.Stack, error) {
	var result *stack.Stack
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		stk, err := s.stacks.WithTx(tx).LockForUpdate(ctx, stackID)
		if err != nil {
			return err
		}
		if !stk.PendingReset {
			return stack.ErrNoPendingReset
		}

		stk.PendingReset = false
		stk.UpdatedAt = time.Now()
		stk.Version++
		if err := s.stacks.WithTx(tx).Update(ctx, stk); err != nil {
			return err
		}
		result = stk
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteStack removes a stack, first returning its entire balance to the
// account's available balance. Both effects commit together.
func (s *Service) DeleteStack(ctx context.Context, stackID uuid.UUID) (*DeleteResult, error) {
	var result *DeleteResult
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		stk, err := s.stacks.WithTx(tx).LockForUpdate(ctx, stackID)
		if err != nil {
			return err
		}
		result, err = s.deleteInTx(ctx, tx, stk)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stack deleted", "stack_id", stackID.String(), "returned", result.ReturnedAmount)
	return result, nil
}

func (s *Service) deleteInTx(ctx context.Context, tx pgx.Tx, stk *stack.Stack) (*DeleteResult, error) {
	returned := stk.CurrentAmount
	if returned > 0 {
		note := fmt.Sprintf("Returned to available balance on deletion of %s", stk.Name)
		if _, err := s.applyStackDelta(ctx, tx, stk, -returned, ledger.EntryTypeDeduction, note); err != nil {
			return nil, err
		}
	}
	if err := s.stacks.WithTx(tx).Delete(ctx, stk.ID); err != nil {
		return nil, err
	}
	return &DeleteResult{StackID: stk.ID, ReturnedAmount: returned}, nil
}

// ReorderStacks renumbers an account's stacks densely (1..n) in the given
// order. Every stack must appear exactly once; renumbering all of them keeps
// priorities unique so funding preference and drain order stay total.
func (s *Service) ReorderStacks(ctx context.Context, accountID uuid.UUID, orderedIDs []uuid.UUID) error {
	return s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		stacks := s.stacks.WithTx(tx)
		existing, err := stacks.ListByAccountID(ctx, accountID)
		if err != nil {
			return err
		}
		if len(existing) != len(orderedIDs) {
			return fmt.Errorf("reorder must list all %d stacks, got %d", len(existing), len(orderedIDs))
		}

		byID := make(map[uuid.UUID]*stack.Stack, len(existing))
		for _, stk := range existing {
			byID[stk.ID] = stk
		}

		// Two passes keep the unique (account_id, priority) constraint happy:
		// park every stack on a negative priority, then assign final values.
		for i, id := range orderedIDs {
			stk, ok := byID[id]
			if !ok {
				return fmt.Errorf("stack %s does not belong to account %s", id, accountID)
			}
			stk.Priority = -(i + 1)
			stk.Version++
			stk.UpdatedAt = time.Now()
			if err := stacks.Update(ctx, stk); err != nil {
				return err
			}
		}
		for i, id := range orderedIDs {
			stk := byID[id]
			stk.Priority = i + 1
			stk.Version++
			stk.UpdatedAt = time.Now()
			if err := stacks.Update(ctx, stk); err != nil {
				return err
			}
		}
		return nil
	})
}

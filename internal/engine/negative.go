package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stackbudget-ledger/internal/domain/account"
	"github.com/stackbudget-ledger/internal/domain/ledger"
	"github.com/stackbudget-ledger/internal/domain/preference"
	"github.com/stackbudget-ledger/internal/domain/stack"
)

// DeallocatedStack records one stack drained during negative-balance recovery
type DeallocatedStack struct {
	StackID   uuid.UUID `json:"stack_id"`
	StackName string    `json:"stack_name"`
	Amount    int64     `json:"amount"`
}

// NegativeBalanceResult reports the outcome of negative-balance resolution.
// Handled == false is a normal outcome, not an error: the caller is expected
// to surface a notification for the remaining deficit.
type NegativeBalanceResult struct {
	Behavior          preference.NegativeBalanceBehavior `json:"behavior"`
	Handled           bool                               `json:"handled"`
	DeallocatedStacks []DeallocatedStack                 `json:"deallocated_stacks,omitempty"`
	RemainingNegative int64                              `json:"remaining_negative,omitempty"`
}

// ResolveNegativeBalance recovers from an available balance pushed below zero
// by a withdrawal or an externally synced transaction. Under auto_deallocate
// it drains active funded stacks worst priority first (numerically highest
// value first), each drain its own atomic transaction. The walk is best
// effort: if a step fails the result reports what was recovered so far and
// the caller re-invokes with the remaining deficit.
func (s *Service) ResolveNegativeBalance(ctx context.Context, accountID uuid.UUID, deficit int64) (*NegativeBalanceResult, error) {
	if deficit <= 0 {
		return nil, account.ErrInvalidAmount
	}

	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	behavior, err := s.prefs.NegativeBalanceBehavior(ctx, acct.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up negative-balance preference: %w", err)
	}

	switch behavior {
	case preference.NegativeAllowNegative:
		return &NegativeBalanceResult{Behavior: behavior, Handled: true}, nil
	case preference.NegativeNotifyOnly:
		return &NegativeBalanceResult{Behavior: behavior, Handled: false, RemainingNegative: deficit}, nil
	}

	result := &NegativeBalanceResult{Behavior: behavior}
	remaining := deficit

	candidates, err := s.stacks.ListDrainOrder(ctx, accountID)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		if remaining == 0 {
			break
		}

		var taken int64
		var name string
		err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
			// Re-read under lock: the snapshot from the drain-order query may
			// be stale by the time this stack's turn comes.
			stk, err := s.stacks.WithTx(tx).LockForUpdate(ctx, candidate.ID)
			if err != nil {
				if errors.Is(err, stack.ErrStackNotFound{}) {
					return nil // deleted since listing, skip
				}
				return err
			}
			if !stk.IsActive || stk.CurrentAmount <= 0 {
				return nil
			}

			take := stk.CurrentAmount
			if remaining < take {
				take = remaining
			}

			note := fmt.Sprintf("Auto-deallocated from %s to cover negative balance", stk.Name)
			if _, err := s.applyStackDelta(ctx, tx, stk, -take, ledger.EntryTypeDeduction, note); err != nil {
				return err
			}

			taken = take
			name = stk.Name
			return nil
		})
		if err != nil {
			// Partial recovery stands; re-invocation with the remaining
			// deficit resumes from current state.
			s.logger.Error("negative-balance drain step failed",
				"account_id", accountID.String(),
				"stack_id", candidate.ID.String(),
				"remaining", remaining,
				"error", err,
			)
			result.Handled = false
			result.RemainingNegative = remaining
			return result, err
		}

		if taken > 0 {
			result.DeallocatedStacks = append(result.DeallocatedStacks, DeallocatedStack{
				StackID:   candidate.ID,
				StackName: name,
				Amount:    taken,
			})
			remaining -= taken
		}
	}

	result.Handled = remaining == 0
	result.RemainingNegative = remaining

	s.logger.Info("negative balance resolved",
		"account_id", accountID.String(),
		"deficit", deficit,
		"handled", result.Handled,
		"remaining", remaining,
		"stacks_drained", len(result.DeallocatedStacks),
	)
	return result, nil
}

package engine

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/stackbudget-ledger/internal/domain/account"
	"github.com/stackbudget-ledger/internal/domain/ledger"
	"github.com/stackbudget-ledger/internal/domain/outbox"
	"github.com/stackbudget-ledger/internal/domain/stack"
)

// applyStackDelta atomically moves delta between the account's available
// balance and the stack: current_amount += delta, available_balance -= delta,
// plus a virtual ledger entry and its outbox mirror row. The caller must hold
// the stack's row lock inside tx; all four writes commit or roll back
// together. stk's CurrentAmount is updated in place on success.
func (s *Service) applyStackDelta(ctx context.Context, tx pgx.Tx, stk *stack.Stack, delta int64, entryType ledger.EntryType, note string) (*ledger.Entry, error) {
	if delta == 0 {
		return nil, nil
	}
	if delta < 0 && stk.CurrentAmount+delta < 0 {
		return nil, stack.ErrInsufficientStackFunds
	}

	current, err := s.stacks.WithTx(tx).AdjustCurrentAmount(ctx, stk.ID, delta)
	if err != nil {
		return nil, err
	}
	if current < 0 {
		// The overdraft check above should make this unreachable; a negative
		// amount here means another writer bypassed the row lock.
		return nil, fmt.Errorf("%w: stack %s current amount %d", account.ErrInconsistentState, stk.ID, current)
	}

	// Guarded when funding the stack: committing more than the free balance
	// would let stack totals exceed the real account balance.
	balance, _, err := s.accounts.WithTx(tx).AdjustAvailableBalance(ctx, stk.AccountID, -delta, delta > 0)
	if err != nil {
		return nil, err
	}

	entry := ledger.NewVirtualEntry(stk.AccountID, stk.ID, entryType, delta, balance, note)
	if err := s.entries.WithTx(tx).Create(ctx, entry); err != nil {
		return nil, err
	}

	msg, err := outbox.NewMessage(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to build outbox message: %w", err)
	}
	if err := s.outbox.WithTx(tx).Create(ctx, msg); err != nil {
		return nil, err
	}

	stk.CurrentAmount = current
	return entry, nil
}

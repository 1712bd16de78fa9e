// Package engine implements the stack allocation and balance reconciliation
// core: moving funds between an account's available balance and its stacks,
// resolving overflow and negative balances, and driving the completion/reset
// lifecycle of goal-bearing stacks. Every mutation happens inside a single
// database transaction so account, stack, and ledger effects commit together.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stackbudget-ledger/internal/domain/account"
	"github.com/stackbudget-ledger/internal/domain/ledger"
	"github.com/stackbudget-ledger/internal/domain/outbox"
	"github.com/stackbudget-ledger/internal/domain/preference"
	"github.com/stackbudget-ledger/internal/domain/stack"
)

// TxRunner runs a function inside a database transaction, rolling back on
// error or panic. *persistence.PostgresDB satisfies this.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Service orchestrates all balance mutations. It owns the transaction
// boundary; the decision logic itself lives in pure functions.
type Service struct {
	db       TxRunner
	accounts account.Repository
	stacks   stack.Repository
	entries  ledger.Repository
	outbox   outbox.Repository
	prefs    preference.Lookup
	now      func() time.Time
	logger   *slog.Logger
}

// NewService creates the allocation engine service
func NewService(
	db TxRunner,
	accounts account.Repository,
	stacks stack.Repository,
	entries ledger.Repository,
	outboxRepo outbox.Repository,
	prefs preference.Lookup,
	logger *slog.Logger,
) *Service {
	return &Service{
		db:       db,
		accounts: accounts,
		stacks:   stacks,
		entries:  entries,
		outbox:   outboxRepo,
		prefs:    prefs,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock overrides the time source, used by tests and the scheduler
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// LifecycleEventKind identifies a stack lifecycle transition observed during
// an operation. Callers decide whether an event warrants a user notification.
type LifecycleEventKind string

const (
	EventCompleted   LifecycleEventKind = "completed"
	EventAutoReset   LifecycleEventKind = "auto_reset"
	EventResetPrompt LifecycleEventKind = "reset_prompt"
	EventDeleted     LifecycleEventKind = "deleted"
)

// LifecycleEvent records a transition that happened as a side effect of an
// allocation or deallocation. AccountID is carried so callers can key
// notifications even after a delete-on-complete removed the stack.
type LifecycleEvent struct {
	StackID   uuid.UUID          `json:"stack_id"`
	AccountID uuid.UUID          `json:"account_id"`
	StackName string             `json:"stack_name"`
	Kind      LifecycleEventKind `json:"kind"`
}

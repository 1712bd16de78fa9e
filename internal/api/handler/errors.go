package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stackbudget-ledger/internal/domain/account"
	"github.com/stackbudget-ledger/internal/domain/shared"
	"github.com/stackbudget-ledger/internal/domain/stack"
	"github.com/stackbudget-ledger/internal/engine"
	"github.com/stackbudget-ledger/internal/platform/messaging/producers"
)

// Notifier publishes advisory events to the notifications topic. Handlers
// treat publish failures as log-only: the API response never depends on them.
type Notifier interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

// respondEngineError maps domain and engine errors onto HTTP statuses
func respondEngineError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, account.ErrAccountNotFound{}):
		RespondNotFound(c, "Account not found")
	case errors.Is(err, stack.ErrStackNotFound{}):
		RespondNotFound(c, "Stack not found")
	case errors.Is(err, account.ErrInvalidAmount),
		errors.Is(err, account.ErrEmptyName),
		errors.Is(err, stack.ErrEmptyName),
		errors.Is(err, stack.ErrInvalidBehavior),
		errors.Is(err, engine.ErrNoPaymentPlan):
		RespondBadRequest(c, err.Error())
	case errors.Is(err, account.ErrInsufficientAvailableFunds):
		RespondUnprocessable(c, "INSUFFICIENT_AVAILABLE_FUNDS", err.Error())
	case errors.Is(err, stack.ErrInsufficientStackFunds):
		RespondUnprocessable(c, "INSUFFICIENT_STACK_FUNDS", err.Error())
	case errors.Is(err, stack.ErrStackInactive),
		errors.Is(err, stack.ErrNotCompleted),
		errors.Is(err, stack.ErrNoPendingReset):
		RespondConflict(c, err.Error())
	default:
		logger.Error("Unhandled engine error", "error", err)
		RespondInternalError(c)
	}
}

// notify publishes best-effort, keyed by account so per-account ordering holds
func notify(ctx context.Context, logger *slog.Logger, notifier Notifier, n producers.Notification) {
	if notifier == nil {
		return
	}
	n.CreatedAt = time.Now().UTC()
	if err := notifier.Publish(ctx, n.AccountID.String(), n); err != nil {
		logger.Error("Failed to publish notification", "kind", string(n.Kind), "account_id", n.AccountID.String(), "error", err)
	}
}

// notifyLifecycleEvents publishes the notification-worthy subset of
// lifecycle events observed during an allocation or deallocation
func notifyLifecycleEvents(ctx context.Context, logger *slog.Logger, notifier Notifier, events []engine.LifecycleEvent) {
	for _, ev := range events {
		ev := ev
		switch ev.Kind {
		case engine.EventCompleted:
			notify(ctx, logger, notifier, producers.Notification{
				Kind:      shared.NotificationStackCompleted,
				AccountID: ev.AccountID,
				StackID:   &ev.StackID,
				StackName: ev.StackName,
				Message:   ev.StackName + " reached its goal",
			})
		case engine.EventResetPrompt:
			notify(ctx, logger, notifier, producers.Notification{
				Kind:      shared.NotificationResetPrompt,
				AccountID: ev.AccountID,
				StackID:   &ev.StackID,
				StackName: ev.StackName,
				Message:   ev.StackName + " is complete. Reset it for the next cycle?",
			})
		}
	}
}

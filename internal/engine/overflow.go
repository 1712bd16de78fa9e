package engine

import (
	"github.com/stackbudget-ledger/internal/domain/stack"
)

// OverflowOutcome describes where allocation excess beyond a stack's target went
type OverflowOutcome string

const (
	// OutcomeNone means the allocation fit within the target (or the stack has none)
	OutcomeNone OverflowOutcome = "none"
	// OutcomeKeptInStack means the excess stayed in the stack, exceeding its target
	OutcomeKeptInStack OverflowOutcome = "kept_in_stack"
	// OutcomeLeftAvailable means the excess was never debited from the available balance
	OutcomeLeftAvailable OverflowOutcome = "left_available"
	// OutcomeRedirected means the excess was offered to the next-priority stack
	OutcomeRedirected OverflowOutcome = "redirected"
)

// OverflowDecision is the outcome of the pure overflow computation: how much
// of the requested amount lands in the stack and what happens to the rest.
type OverflowDecision struct {
	Applied  int64           // amount placed into the stack
	Overflow int64           // excess beyond the remaining distance to target
	Outcome  OverflowOutcome // disposition of the excess
}

// DecideOverflow computes the overflow split for allocating amount into s.
// A non-nil override replaces the stack's stored behavior for this call,
// which lets an interactive caller confirm the decision before committing.
// Pure: no I/O, no mutation.
func DecideOverflow(s *stack.Stack, amount int64, override *stack.OverflowBehavior) OverflowDecision {
	behavior := s.OverflowBehavior
	if override != nil {
		behavior = *override
	}

	if !s.HasTarget() {
		return OverflowDecision{Applied: amount, Outcome: OutcomeNone}
	}

	remaining := s.RemainingToTarget()
	if amount <= remaining {
		return OverflowDecision{Applied: amount, Outcome: OutcomeNone}
	}
	overflow := amount - remaining

	switch behavior {
	case stack.OverflowKeepInStack:
		// The full amount goes in; the stack is allowed to exceed its target.
		return OverflowDecision{Applied: amount, Overflow: overflow, Outcome: OutcomeKeptInStack}
	case stack.OverflowNextPriority:
		return OverflowDecision{Applied: remaining, Overflow: overflow, Outcome: OutcomeRedirected}
	default:
		// available_balance: only the capped portion is ever debited.
		return OverflowDecision{Applied: remaining, Overflow: overflow, Outcome: OutcomeLeftAvailable}
	}
}

package stack

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines stack persistence operations
type Repository interface {
	Create(ctx context.Context, stack *Stack) error
	GetByID(ctx context.Context, id uuid.UUID) (*Stack, error)
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*Stack, error)
	Update(ctx context.Context, stack *Stack) error
	Delete(ctx context.Context, id uuid.UUID) error

	// AdjustCurrentAmount applies a signed delta to current_amount as a single
	// atomic increment and returns the resulting amount.
	AdjustCurrentAmount(ctx context.Context, id uuid.UUID, delta int64) (int64, error)

	// LockForUpdate acquires a pessimistic row lock so concurrent allocations
	// against the same stack observe a consistent current amount.
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Stack, error)

	// NextByPriority returns the active stack with the smallest priority value
	// strictly greater than afterPriority, or nil when none exists.
	NextByPriority(ctx context.Context, accountID uuid.UUID, afterPriority int) (*Stack, error)

	// ListDrainOrder returns active stacks holding funds, worst priority first
	// (numerically highest value first), the order negative-balance recovery
	// drains them in.
	ListDrainOrder(ctx context.Context, accountID uuid.UUID) ([]*Stack, error)

	// ListAutoAllocateDue returns active auto-allocating stacks whose next
	// contribution date is at or before now.
	ListAutoAllocateDue(ctx context.Context, now time.Time, limit int) ([]*Stack, error)

	// SetAutoAllocateNextDate advances a stack's next contribution date
	SetAutoAllocateNextDate(ctx context.Context, id uuid.UUID, next time.Time) error

	// MaxPriority returns the highest priority value in use for the account,
	// zero when the account has no stacks.
	MaxPriority(ctx context.Context, accountID uuid.UUID) (int, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrStackNotFound indicates missing stack
type ErrStackNotFound struct {
	StackID uuid.UUID
}

func (e ErrStackNotFound) Error() string {
	return "stack not found: " + e.StackID.String()
}

// Is matches any ErrStackNotFound when the target carries a nil ID
func (e ErrStackNotFound) Is(target error) bool {
	t, ok := target.(ErrStackNotFound)
	if !ok {
		return false
	}
	return t.StackID == uuid.Nil || e.StackID == t.StackID
}

package preference

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// NegativeBalanceBehavior controls what happens when an account's available
// balance would drop below zero.
type NegativeBalanceBehavior string

const (
	// NegativeAutoDeallocate drains stacks, worst priority first, to cover the deficit
	NegativeAutoDeallocate NegativeBalanceBehavior = "auto_deallocate"
	// NegativeNotifyOnly leaves the deficit in place and signals the caller to notify the user
	NegativeNotifyOnly NegativeBalanceBehavior = "notify_only"
	// NegativeAllowNegative leaves the deficit in place silently
	NegativeAllowNegative NegativeBalanceBehavior = "allow_negative"
)

// IsValid reports whether the behavior is one of the known values
func (b NegativeBalanceBehavior) IsValid() bool {
	switch b {
	case NegativeAutoDeallocate, NegativeNotifyOnly, NegativeAllowNegative:
		return true
	}
	return false
}

// Lookup resolves a user's negative-balance preference. Users without a
// stored preference default to auto_deallocate.
type Lookup interface {
	NegativeBalanceBehavior(ctx context.Context, userID uuid.UUID) (NegativeBalanceBehavior, error)
}

// Repository defines preference persistence operations
type Repository interface {
	Lookup
	SetNegativeBalanceBehavior(ctx context.Context, userID uuid.UUID, behavior NegativeBalanceBehavior) error
	WithTx(tx pgx.Tx) Repository
}

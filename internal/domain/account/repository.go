package account

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines account persistence operations
type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*Account, error)
	Update(ctx context.Context, account *Account) error

	// AdjustAvailableBalance applies a signed delta to available_balance as a
	// single atomic increment and returns the resulting balance pair. When
	// guarded is true the update only succeeds if the available balance would
	// stay non-negative; otherwise ErrInsufficientAvailableFunds is returned.
	AdjustAvailableBalance(ctx context.Context, id uuid.UUID, delta int64, guarded bool) (balance, available int64, err error)

	// LockForUpdate acquires a pessimistic row lock for balance reconciliation
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrAccountNotFound indicates missing account
type ErrAccountNotFound struct {
	AccountID uuid.UUID
}

func (e ErrAccountNotFound) Error() string {
	return "account not found: " + e.AccountID.String()
}

// Is matches any ErrAccountNotFound when the target carries a nil ID
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	return t.AccountID == uuid.Nil || e.AccountID == t.AccountID
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	AccountID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for account: " + e.AccountID.String()
}

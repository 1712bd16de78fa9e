package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidAmount              = errors.New("amount must be positive")
	ErrInsufficientAvailableFunds = errors.New("insufficient available balance")
	ErrEmptyName                  = errors.New("account name cannot be empty")
	ErrInconsistentState          = errors.New("account balances inconsistent with stack totals")
)

// Account holds a user's funds. Balance is the total the account is worth;
// AvailableBalance is the portion not committed to any active stack. After
// every committed operation AvailableBalance == Balance - sum of active
// stack amounts.
type Account struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	Name             string    `json:"name"`
	Balance          int64     `json:"balance"`           // Stored in cents/minor units
	AvailableBalance int64     `json:"available_balance"` // Funds not held in stacks
	Version          int       `json:"version"`           // For optimistic locking
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewAccount creates an account with the given opening balance. Nothing is
// committed to stacks yet, so the full balance starts available.
func NewAccount(userID uuid.UUID, name string, openingBalance int64) (*Account, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if openingBalance < 0 {
		return nil, ErrInvalidAmount
	}

	return &Account{
		ID:               uuid.New(),
		UserID:           userID,
		Name:             name,
		Balance:          openingBalance,
		AvailableBalance: openingBalance,
		Version:          1,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}, nil
}

// SetBalance records a manual balance entry or an external sync. The change
// flows entirely through the available portion; stack holdings are untouched.
// The resulting available balance may be negative, in which case the caller
// is expected to run negative-balance resolution.
func (a *Account) SetBalance(newBalance int64) int64 {
	delta := newBalance - a.Balance
	a.Balance = newBalance
	a.AvailableBalance += delta
	a.UpdatedAt = time.Now()
	a.Version++
	return delta
}

// CanAllocate checks whether the available balance covers an allocation
func (a *Account) CanAllocate(amount int64) bool {
	return a.AvailableBalance >= amount
}

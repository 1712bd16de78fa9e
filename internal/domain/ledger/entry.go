package ledger

import (
	"time"

	"github.com/google/uuid"
)

// EntryType defines the kinds of ledger entries
type EntryType string

const (
	EntryTypeDeposit    EntryType = "deposit"
	EntryTypeWithdrawal EntryType = "withdrawal"
	EntryTypeTransfer   EntryType = "transfer"
	EntryTypeAllocation EntryType = "allocation"
	EntryTypeDeduction  EntryType = "deduction"
)

// Entry is an append-only ledger record. Virtual entries move money between
// the account's available balance and a stack; they never change the real
// account balance. The Amount sign follows the flow relative to the stack:
// positive into the stack, negative out of it.
type Entry struct {
	ID        uuid.UUID  `json:"id" bson:"entry_id"`
	AccountID uuid.UUID  `json:"account_id" bson:"account_id"`
	StackID   *uuid.UUID `json:"stack_id,omitempty" bson:"stack_id,omitempty"`
	Type      EntryType  `json:"type" bson:"type"`
	Amount    int64      `json:"amount" bson:"amount"`   // Stored in cents/minor units
	Balance   int64      `json:"balance" bson:"balance"` // Account balance snapshot at recording time
	IsVirtual bool       `json:"is_virtual" bson:"is_virtual"`
	Note      string     `json:"note,omitempty" bson:"note,omitempty"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
}

// NewVirtualEntry records a movement of delta between the available balance
// and a stack. balanceSnapshot is the account's real balance at commit time,
// which a virtual entry never changes.
func NewVirtualEntry(accountID, stackID uuid.UUID, entryType EntryType, delta, balanceSnapshot int64, note string) *Entry {
	sid := stackID
	return &Entry{
		ID:        uuid.New(),
		AccountID: accountID,
		StackID:   &sid,
		Type:      entryType,
		Amount:    delta,
		Balance:   balanceSnapshot,
		IsVirtual: true,
		Note:      note,
		CreatedAt: time.Now(),
	}
}

// NewBalanceEntry records a real balance change (manual entry or sync)
func NewBalanceEntry(accountID uuid.UUID, entryType EntryType, amount, balanceSnapshot int64, note string) *Entry {
	return &Entry{
		ID:        uuid.New(),
		AccountID: accountID,
		Type:      entryType,
		Amount:    amount,
		Balance:   balanceSnapshot,
		IsVirtual: false,
		Note:      note,
		CreatedAt: time.Now(),
	}
}

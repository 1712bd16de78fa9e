package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository is the canonical (transactional) ledger store. Entries are
// written in the same database transaction as the balance changes they record.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	WithTx(tx pgx.Tx) Repository
}

// HistoryRepository is the read model serving paginated transaction history.
// It is fed asynchronously from the canonical store via the outbox mirror.
type HistoryRepository interface {
	Insert(ctx context.Context, entry *Entry) error
	GetByEntryID(ctx context.Context, entryID uuid.UUID) (*Entry, error)
	GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Entry, error)
	CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error)
}

// ErrEntryNotFound indicates missing ledger entry
type ErrEntryNotFound struct {
	EntryID uuid.UUID
}

func (e ErrEntryNotFound) Error() string {
	return "ledger entry not found: " + e.EntryID.String()
}

// Is matches any ErrEntryNotFound when the target carries a nil ID
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	return t.EntryID == uuid.Nil || e.EntryID == t.EntryID
}

// ErrDuplicateEntry indicates entry uniqueness violation
type ErrDuplicateEntry struct {
	EntryID uuid.UUID
}

func (e ErrDuplicateEntry) Error() string {
	return "duplicate ledger entry: " + e.EntryID.String()
}

// Is matches any ErrDuplicateEntry when the target carries a nil ID
func (e ErrDuplicateEntry) Is(target error) bool {
	t, ok := target.(ErrDuplicateEntry)
	if !ok {
		return false
	}
	return t.EntryID == uuid.Nil || e.EntryID == t.EntryID
}

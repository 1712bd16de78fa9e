package engine

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stackbudget-ledger/internal/domain/account"
	"github.com/stackbudget-ledger/internal/domain/ledger"
	"github.com/stackbudget-ledger/internal/domain/outbox"
	"github.com/stackbudget-ledger/internal/domain/preference"
	"github.com/stackbudget-ledger/internal/domain/shared"
	"github.com/stackbudget-ledger/internal/domain/stack"
)

// fakeStore is an in-memory stand-in for Postgres shared by the fake
// repositories. Transactions are not simulated; each mutation applies
// immediately, which is sufficient for exercising the engine's decision
// logic and invariants.
type fakeStore struct {
	accounts map[uuid.UUID]*account.Account
	stacks   map[uuid.UUID]*stack.Stack
	entries  []*ledger.Entry
	outbox   []*outbox.Message
	behavior preference.NegativeBalanceBehavior
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[uuid.UUID]*account.Account),
		stacks:   make(map[uuid.UUID]*stack.Stack),
		behavior: preference.NegativeAutoDeallocate,
	}
}

func (f *fakeStore) addAccount(balance int64) *account.Account {
	acct, _ := account.NewAccount(uuid.New(), "Checking", balance)
	f.accounts[acct.ID] = acct
	return acct
}

func (f *fakeStore) addStack(accountID uuid.UUID, name string, priority int, current int64) *stack.Stack {
	stk, _ := stack.NewStack(accountID, name, priority)
	stk.CurrentAmount = current
	f.stacks[stk.ID] = stk
	if acct, ok := f.accounts[accountID]; ok {
		acct.AvailableBalance -= current
	}
	return stk
}

// sumStacks totals the current amount held across the account's stacks
func (f *fakeStore) sumStacks(accountID uuid.UUID) int64 {
	var total int64
	for _, stk := range f.stacks {
		if stk.AccountID == accountID {
			total += stk.CurrentAmount
		}
	}
	return total
}

type fakeTxRunner struct{}

func (fakeTxRunner) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type fakeAccountRepo struct{ store *fakeStore }

func (r *fakeAccountRepo) Create(ctx context.Context, acct *account.Account) error {
	r.store.accounts[acct.ID] = acct
	return nil
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	acct, ok := r.store.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound{AccountID: id}
	}
	return acct, nil
}

func (r *fakeAccountRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*account.Account, error) {
	var out []*account.Account
	for _, acct := range r.store.accounts {
		if acct.UserID == userID {
			out = append(out, acct)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) Update(ctx context.Context, acct *account.Account) error {
	r.store.accounts[acct.ID] = acct
	return nil
}

func (r *fakeAccountRepo) AdjustAvailableBalance(ctx context.Context, id uuid.UUID, delta int64, guarded bool) (int64, int64, error) {
	acct, ok := r.store.accounts[id]
	if !ok {
		return 0, 0, account.ErrAccountNotFound{AccountID: id}
	}
	if guarded && acct.AvailableBalance+delta < 0 {
		return 0, 0, account.ErrInsufficientAvailableFunds
	}
	acct.AvailableBalance += delta
	return acct.Balance, acct.AvailableBalance, nil
}

func (r *fakeAccountRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeAccountRepo) WithTx(tx pgx.Tx) account.Repository { return r }

type fakeStackRepo struct{ store *fakeStore }

func (r *fakeStackRepo) Create(ctx context.Context, stk *stack.Stack) error {
	r.store.stacks[stk.ID] = stk
	return nil
}

func (r *fakeStackRepo) GetByID(ctx context.Context, id uuid.UUID) (*stack.Stack, error) {
	stk, ok := r.store.stacks[id]
	if !ok {
		return nil, stack.ErrStackNotFound{StackID: id}
	}
	return stk, nil
}

func (r *fakeStackRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*stack.Stack, error) {
	var out []*stack.Stack
	for _, stk := range r.store.stacks {
		if stk.AccountID == accountID {
			out = append(out, stk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (r *fakeStackRepo) Update(ctx context.Context, stk *stack.Stack) error {
	if _, ok := r.store.stacks[stk.ID]; !ok {
		return stack.ErrStackNotFound{StackID: stk.ID}
	}
	r.store.stacks[stk.ID] = stk
	return nil
}

func (r *fakeStackRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.store.stacks[id]; !ok {
		return stack.ErrStackNotFound{StackID: id}
	}
	delete(r.store.stacks, id)
	return nil
}

func (r *fakeStackRepo) AdjustCurrentAmount(ctx context.Context, id uuid.UUID, delta int64) (int64, error) {
	stk, ok := r.store.stacks[id]
	if !ok {
		return 0, stack.ErrStackNotFound{StackID: id}
	}
	stk.CurrentAmount += delta
	return stk.CurrentAmount, nil
}

func (r *fakeStackRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*stack.Stack, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeStackRepo) NextByPriority(ctx context.Context, accountID uuid.UUID, afterPriority int) (*stack.Stack, error) {
	var next *stack.Stack
	for _, stk := range r.store.stacks {
		if stk.AccountID != accountID || !stk.IsActive || stk.Priority <= afterPriority {
			continue
		}
		if next == nil || stk.Priority < next.Priority {
			next = stk
		}
	}
	return next, nil
}

func (r *fakeStackRepo) ListDrainOrder(ctx context.Context, accountID uuid.UUID) ([]*stack.Stack, error) {
	var out []*stack.Stack
	for _, stk := range r.store.stacks {
		if stk.AccountID == accountID && stk.IsActive && stk.CurrentAmount > 0 {
			out = append(out, stk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func (r *fakeStackRepo) ListAutoAllocateDue(ctx context.Context, now time.Time, limit int) ([]*stack.Stack, error) {
	var out []*stack.Stack
	for _, stk := range r.store.stacks {
		if stk.IsActive && stk.AutoAllocate &&
			stk.AutoAllocateNextDate != nil && !stk.AutoAllocateNextDate.After(now) {
			out = append(out, stk)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeStackRepo) SetAutoAllocateNextDate(ctx context.Context, id uuid.UUID, next time.Time) error {
	stk, ok := r.store.stacks[id]
	if !ok {
		return stack.ErrStackNotFound{StackID: id}
	}
	stk.AutoAllocateNextDate = &next
	return nil
}

func (r *fakeStackRepo) MaxPriority(ctx context.Context, accountID uuid.UUID) (int, error) {
	max := 0
	for _, stk := range r.store.stacks {
		if stk.AccountID == accountID && stk.Priority > max {
			max = stk.Priority
		}
	}
	return max, nil
}

func (r *fakeStackRepo) WithTx(tx pgx.Tx) stack.Repository { return r }

type fakeLedgerRepo struct{ store *fakeStore }

func (r *fakeLedgerRepo) Create(ctx context.Context, entry *ledger.Entry) error {
	r.store.entries = append(r.store.entries, entry)
	return nil
}

func (r *fakeLedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	for _, entry := range r.store.entries {
		if entry.ID == id {
			return entry, nil
		}
	}
	return nil, ledger.ErrEntryNotFound{EntryID: id}
}

func (r *fakeLedgerRepo) WithTx(tx pgx.Tx) ledger.Repository { return r }

type fakeOutboxRepo struct{ store *fakeStore }

func (r *fakeOutboxRepo) Create(ctx context.Context, msg *outbox.Message) error {
	msg.ID = int64(len(r.store.outbox) + 1)
	r.store.outbox = append(r.store.outbox, msg)
	return nil
}

func (r *fakeOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	return nil, nil
}

func (r *fakeOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	return nil
}

func (r *fakeOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error { return nil }
func (r *fakeOutboxRepo) Delete(ctx context.Context, id int64) error            { return nil }
func (r *fakeOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository                    { return r }

type fakePrefs struct{ store *fakeStore }

func (p *fakePrefs) NegativeBalanceBehavior(ctx context.Context, userID uuid.UUID) (preference.NegativeBalanceBehavior, error) {
	return p.store.behavior, nil
}

func newTestService(store *fakeStore) *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(
		fakeTxRunner{},
		&fakeAccountRepo{store: store},
		&fakeStackRepo{store: store},
		&fakeLedgerRepo{store: store},
		&fakeOutboxRepo{store: store},
		&fakePrefs{store: store},
		log,
	)
}

package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackbudget-ledger/internal/domain/account"
	"github.com/stackbudget-ledger/internal/domain/stack"
)

// assertBalanceInvariant checks that the available balance plus the funds held
// in stacks always equals the account balance.
func assertBalanceInvariant(t *testing.T, store *fakeStore, accountID uuid.UUID) {
	t.Helper()
	acct := store.accounts[accountID]
	assert.Equal(t, acct.Balance, acct.AvailableBalance+store.sumStacks(acct.ID),
		"available + stack totals must equal the account balance")
}

func TestService_Allocate(t *testing.T) {
	ctx := context.Background()

	t.Run("MovesFundsIntoStack", func(t *testing.T) {
		store := newFakeStore()
		acct := store.addAccount(10000)
		stk := store.addStack(acct.ID, "Groceries", 1, 0)
		svc := newTestService(store)

		result, err := svc.Allocate(ctx, AllocateRequest{StackID: stk.ID, Amount: 3000})

		require.NoError(t, err)
		assert.Equal(t, int64(3000), result.Applied)
		assert.Equal(t, int64(0), result.Overflow)
		assert.Equal(t, OutcomeNone, result.Outcome)
		assert.Equal(t, int64(3000), result.CurrentAmount)
		assert.Equal(t, int64(7000), acct.AvailableBalance)
		assertBalanceInvariant(t, store, acct.ID)
	})

	t.Run("RecordsLedgerEntryAndOutboxRow", func(t *testing.T) {
		store := newFakeStore()
		acct := store.addAccount(10000)
		stk := store.addStack(acct.ID, "Rent", 1, 0)
		svc := newTestService(store)

		_, err := svc.Allocate(ctx, AllocateRequest{StackID: stk.ID, Amount: 2500, Note: "September rent"})

		require.NoError(t, err)
		require.Len(t, store.entries, 1)
		entry := store.entries[0]
		assert.True(t, entry.IsVirtual)
		assert.Equal(t, int64(2500), entry.Amount)
		assert.Equal(t, int64(10000), entry.Balance, "virtual entries snapshot the unchanged real balance")
		assert.Equal(t, "September rent", entry.Note)
		require.Len(t, store.outbox, 1)
		assert.Equal(t, entry.ID, store.outbox[0].EntryID)
	})

	t.Run("RejectsNonPositiveAmount", func(t *testing.T) {
		store := newFakeStore()
		acct := store.addAccount(10000)
		stk := store.addStack(acct.ID, "Groceries", 1, 0)
		svc := newTestService(store)

		_, err := svc.Allocate(ctx, AllocateRequest{StackID: stk.ID, Amount: 0})
		assert.ErrorIs(t, err, account.ErrInvalidAmount)

		_, err = svc.Allocate(ctx, AllocateRequest{StackID: stk.ID, Amount: -100})
		assert.ErrorIs(t, err, account.ErrInvalidAmount)
	})

	t.Run("RejectsWhenAvailableBalanceInsufficient", func(t *testing.T) {
		store := newFakeStore()
		acct := store.addAccount(1000)
		stk := store.addStack(acct.ID, "Groceries", 1, 0)
		svc := newTestService(store)

		_, err := svc.Allocate(ctx, AllocateRequest{StackID: stk.ID, Amount: 5000})

		assert.ErrorIs(t, err, account.ErrInsufficientAvailableFunds)
	})

	t.Run("RejectsInactiveStack", func(t *testing.T) {
		store := newFakeStore()
		acct := store.addAccount(10000)
		stk := store.addStack(acct.ID, "Archived", 1, 0)
		stk.IsActive = false
		svc := newTestService(store)

		_, err := svc.Allocate(ctx, AllocateRequest{StackID: stk.ID, Amount: 100})

		assert.ErrorIs(t, err, stack.ErrStackInactive)
	})

	t.Run("UnknownStack", func(t *testing.T) {
		store := newFakeStore()
		store.addAccount(10000)
		svc := newTestService(store)

		_, err := svc.Allocate(ctx, AllocateRequest{StackID: uuid.New(), Amount: 100})

		assert.ErrorIs(t, err, stack.ErrStackNotFound{})
	})
}

func TestService_Allocate_Overflow(t *testing.T) {
	ctx := context.Background()
	target := int64(10000)

	// setup gives the stack 5000 of a 10000 target, so allocating 8000
	// overflows by 3000.
	setup := func(behavior stack.OverflowBehavior) (*fakeStore, *account.Account, *stack.Stack) {
		store := newFakeStore()
		acct := store.addAccount(20000)
		stk := store.addStack(acct.ID, "Vacation", 1, 5000)
		stk.TargetAmount = &target
		stk.OverflowBehavior = behavior
		return store, acct, stk
	}

	t.Run("KeepInStackExceedsTarget", func(t *testing.T) {
		store, acct, stk := setup(stack.OverflowKeepInStack)
		svc := newTestService(store)

		result, err := svc.Allocate(ctx, AllocateRequest{StackID: stk.ID, Amount: 8000})

		require.NoError(t, err)
		assert.Equal(t, int64(8000), result.Applied)
		assert.Equal(t, int64(3000), result.Overflow)
		assert.Equal(t, OutcomeKeptInStack, result.Outcome)
		assert.Equal(t, int64(13000), stk.CurrentAmount)
		assertBalanceInvariant(t, store, acct.ID)
	})

	t.Run("AvailableBalanceNeverDebitsExcess", func(t *testing.T) {
		store, acct, stk := setup(stack.OverflowAvailableBalance)
		svc := newTestService(store)

		result, err := svc.Allocate(ctx, AllocateRequest{StackID: stk.ID, Amount: 8000})

		require.NoError(t, err)
		assert.Equal(t, int64(5000), result.Applied)
		assert.Equal(t, int64(3000), result.Unallocated)
		assert.Equal(t, OutcomeLeftAvailable, result.Outcome)
		assert.Equal(t, target, stk.CurrentAmount)
		assert.Equal(t, int64(10000), acct.AvailableBalance)
		assertBalanceInvariant(t, store, acct.ID)
	})

	t.Run("NextPriorityRedirects", func(t *testing.T) {
		store, acct, stk := setup(stack.OverflowNextPriority)
		next := store.addStack(acct.ID, "Emergency", 2, 0)
		svc := newTestService(store)

		result, err := svc.Allocate(ctx, AllocateRequest{StackID: stk.ID, Amount: 8000})

		require.NoError(t, err)
		assert.Equal(t, int64(5000), result.Applied)
		assert.Equal(t, OutcomeRedirected, result.Outcome)
		require.Len(t, result.Redirects, 1)
		assert.Equal(t, next.ID, result.Redirects[0].StackID)
		assert.Equal(t, "Emergency", result.Redirects[0].StackName)
		assert.Equal(t, int64(3000), result.Redirects[0].Amount)
		assert.Equal(t, int64(3000), next.CurrentAmount)
		assertBalanceInvariant(t, store, acct.ID)
	})

	t.Run("NextPriorityCascadesDownThePriorityOrder", func(t *testing.T) {
		store, acct, stk := setup(stack.OverflowNextPriority)
		midTarget := int64(1000)
		mid := store.addStack(acct.ID, "Car Repair", 2, 0)
		mid.TargetAmount = &midTarget
		mid.OverflowBehavior = stack.OverflowNextPriority
		last := store.addStack(acct.ID, "Savings", 3, 0)
		svc := newTestService(store)

		result, err := svc.Allocate(ctx, AllocateRequest{StackID: stk.ID, Amount: 8000})

		require.NoError(t, err)
		require.Len(t, result.Redirects, 2)
		assert.Equal(t, int64(1000), mid.CurrentAmount)
		assert.Equal(t, int64(2000), last.CurrentAmount)
		assertBalanceInvariant(t, store, acct.ID)
	})

	t.Run("NextPriorityWithoutNextStackFallsBackToAvailable", func(t *testing.T) {
		store, acct, stk := setup(stack.OverflowNextPriority)
		svc := newTestService(store)

		result, err := svc.Allocate(ctx, AllocateRequest{StackID: stk.ID, Amount: 8000})

		require.NoError(t, err)
		assert.Equal(t, int64(5000), result.Applied)
		assert.Equal(t, int64(3000), result.Unallocated)
		assert.Empty(t, result.Redirects)
		assert.Equal(t, int64(10000), acct.AvailableBalance)
		assertBalanceInvariant(t, store, acct.ID)
	})

	t.Run("OverrideReplacesStoredBehavior", func(t *testing.T) {
		store, acct, stk := setup(stack.OverflowAvailableBalance)
		svc := newTestService(store)

		override := stack.OverflowKeepInStack
		result, err := svc.Allocate(ctx, AllocateRequest{StackID: stk.ID, Amount: 8000, OverflowOverride: &override})

		require.NoError(t, err)
		assert.Equal(t, OutcomeKeptInStack, result.Outcome)
		assert.Equal(t, int64(13000), stk.CurrentAmount)
		assertBalanceInvariant(t, store, acct.ID)
	})
}

func TestService_Deallocate(t *testing.T) {
	ctx := context.Background()

	t.Run("RoundTripRestoresAvailableBalance", func(t *testing.T) {
		store := newFakeStore()
		acct := store.addAccount(10000)
		stk := store.addStack(acct.ID, "Groceries", 1, 0)
		svc := newTestService(store)

		_, err := svc.Allocate(ctx, AllocateRequest{StackID: stk.ID, Amount: 4000})
		require.NoError(t, err)

		result, err := svc.Deallocate(ctx, stk.ID, 4000, "")

		require.NoError(t, err)
		assert.Equal(t, int64(0), result.CurrentAmount)
		assert.Equal(t, int64(10000), acct.AvailableBalance)
		assertBalanceInvariant(t, store, acct.ID)
	})

	t.Run("RejectsOverdraw", func(t *testing.T) {
		store := newFakeStore()
		acct := store.addAccount(10000)
		stk := store.addStack(acct.ID, "Groceries", 1, 3000)
		svc := newTestService(store)

		_, err := svc.Deallocate(ctx, stk.ID, 3001, "")

		assert.ErrorIs(t, err, stack.ErrInsufficientStackFunds)
		assert.Equal(t, int64(3000), stk.CurrentAmount)
	})

	t.Run("RejectsNonPositiveAmount", func(t *testing.T) {
		store := newFakeStore()
		acct := store.addAccount(10000)
		stk := store.addStack(acct.ID, "Groceries", 1, 3000)
		svc := newTestService(store)

		_, err := svc.Deallocate(ctx, stk.ID, 0, "")

		assert.ErrorIs(t, err, account.ErrInvalidAmount)
	})
}

func TestService_PreviewAllocation(t *testing.T) {
	ctx := context.Background()
	target := int64(5000)

	t.Run("SurfacesRedirectTarget", func(t *testing.T) {
		store := newFakeStore()
		acct := store.addAccount(20000)
		stk := store.addStack(acct.ID, "Vacation", 1, 4000)
		stk.TargetAmount = &target
		stk.OverflowBehavior = stack.OverflowNextPriority
		next := store.addStack(acct.ID, "Emergency", 2, 0)
		svc := newTestService(store)

		preview, err := svc.PreviewAllocation(ctx, stk.ID, 3000, nil)

		require.NoError(t, err)
		assert.Equal(t, int64(1000), preview.Applied)
		assert.Equal(t, int64(2000), preview.Overflow)
		assert.Equal(t, OutcomeRedirected, preview.Outcome)
		require.NotNil(t, preview.NextStackID)
		assert.Equal(t, next.ID, *preview.NextStackID)
		assert.Equal(t, "Emergency", preview.NextStackName)
		assert.Equal(t, int64(4000), stk.CurrentAmount, "preview must not commit")
	})

	t.Run("RedirectWithoutNextStackDowngradesToAvailable", func(t *testing.T) {
		store := newFakeStore()
		acct := store.addAccount(20000)
		stk := store.addStack(acct.ID, "Vacation", 1, 4000)
		stk.TargetAmount = &target
		stk.OverflowBehavior = stack.OverflowNextPriority
		svc := newTestService(store)

		preview, err := svc.PreviewAllocation(ctx, stk.ID, 3000, nil)

		require.NoError(t, err)
		assert.Equal(t, OutcomeLeftAvailable, preview.Outcome)
		assert.Nil(t, preview.NextStackID)
	})

	t.Run("OverrideChangesTheDecision", func(t *testing.T) {
		store := newFakeStore()
		acct := store.addAccount(20000)
		stk := store.addStack(acct.ID, "Vacation", 1, 4000)
		stk.TargetAmount = &target
		stk.OverflowBehavior = stack.OverflowNextPriority
		svc := newTestService(store)

		override := stack.OverflowKeepInStack
		preview, err := svc.PreviewAllocation(ctx, stk.ID, 3000, &override)

		require.NoError(t, err)
		assert.Equal(t, stack.OverflowKeepInStack, preview.Behavior)
		assert.Equal(t, OutcomeKeptInStack, preview.Outcome)
		assert.Equal(t, int64(3000), preview.Applied)
	})
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stackbudget-ledger/internal/domain/account"
	"github.com/stackbudget-ledger/internal/domain/ledger"
	"github.com/stackbudget-ledger/internal/domain/outbox"
	"github.com/stackbudget-ledger/internal/domain/preference"
	"github.com/stackbudget-ledger/internal/domain/shared"
	"github.com/stackbudget-ledger/internal/engine"
)

// stubTxRunner runs the transactional closure directly; the repositories are
// mocked, so there is nothing to commit or roll back.
type stubTxRunner struct{}

func (stubTxRunner) ExecuteTx(_ context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, acc *account.Account) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*account.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.Account), args.Error(1)
}

func (m *MockAccountRepository) Update(ctx context.Context, acc *account.Account) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

func (m *MockAccountRepository) AdjustAvailableBalance(ctx context.Context, id uuid.UUID, delta int64, guarded bool) (int64, int64, error) {
	args := m.Called(ctx, id, delta, guarded)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *MockAccountRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepository) WithTx(tx pgx.Tx) account.Repository {
	m.Called(tx)
	return m
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepository) WithTx(tx pgx.Tx) ledger.Repository {
	m.Called(tx)
	return m
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Create(ctx context.Context, msg *outbox.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepository) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	m.Called(tx)
	return m
}

type MockPreferenceRepository struct {
	mock.Mock
}

func (m *MockPreferenceRepository) NegativeBalanceBehavior(ctx context.Context, userID uuid.UUID) (preference.NegativeBalanceBehavior, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(preference.NegativeBalanceBehavior), args.Error(1)
}

func (m *MockPreferenceRepository) SetNegativeBalanceBehavior(ctx context.Context, userID uuid.UUID, behavior preference.NegativeBalanceBehavior) error {
	args := m.Called(ctx, userID, behavior)
	return args.Error(0)
}

func (m *MockPreferenceRepository) WithTx(tx pgx.Tx) preference.Repository {
	m.Called(tx)
	return m
}

type MockNegativeResolver struct {
	mock.Mock
}

func (m *MockNegativeResolver) ResolveNegativeBalance(ctx context.Context, accountID uuid.UUID, deficit int64) (*engine.NegativeBalanceResult, error) {
	args := m.Called(ctx, accountID, deficit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*engine.NegativeBalanceResult), args.Error(1)
}

type accountServiceMocks struct {
	accounts *MockAccountRepository
	entries  *MockLedgerRepository
	outbox   *MockOutboxRepository
	prefs    *MockPreferenceRepository
	resolver *MockNegativeResolver
}

func newAccountService() (AccountService, *accountServiceMocks) {
	mocks := &accountServiceMocks{
		accounts: new(MockAccountRepository),
		entries:  new(MockLedgerRepository),
		outbox:   new(MockOutboxRepository),
		prefs:    new(MockPreferenceRepository),
		resolver: new(MockNegativeResolver),
	}
	svc := NewAccountService(stubTxRunner{}, mocks.accounts, mocks.entries, mocks.outbox, mocks.prefs, mocks.resolver)
	return svc, mocks
}

func testAccount(balance, available int64) *account.Account {
	now := time.Now()
	return &account.Account{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		Name:             "Checking",
		Balance:          balance,
		AvailableBalance: available,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestAccountServiceImpl_CreateAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		svc, mocks := newAccountService()
		userID := uuid.New()

		mocks.accounts.On("Create", ctx, mock.AnythingOfType("*account.Account")).Return(nil).Once()

		acc, err := svc.CreateAccount(ctx, userID, "Checking", 250000)

		assert.NoError(t, err)
		require.NotNil(t, acc)
		assert.Equal(t, userID, acc.UserID)
		assert.Equal(t, "Checking", acc.Name)
		assert.Equal(t, int64(250000), acc.Balance)
		assert.Equal(t, int64(250000), acc.AvailableBalance, "opening balance starts fully available")
		assert.NotEqual(t, uuid.Nil, acc.ID)
		mocks.accounts.AssertExpectations(t)
	})

	t.Run("EmptyName", func(t *testing.T) {
		svc, mocks := newAccountService()

		_, err := svc.CreateAccount(ctx, uuid.New(), "", 1000)

		assert.ErrorIs(t, err, account.ErrEmptyName)
		mocks.accounts.AssertNotCalled(t, "Create", ctx, mock.AnythingOfType("*account.Account"))
	})

	t.Run("NegativeOpeningBalance", func(t *testing.T) {
		svc, mocks := newAccountService()

		_, err := svc.CreateAccount(ctx, uuid.New(), "Checking", -1)

		assert.ErrorIs(t, err, account.ErrInvalidAmount)
		mocks.accounts.AssertNotCalled(t, "Create", ctx, mock.AnythingOfType("*account.Account"))
	})

	t.Run("RepositoryCreateError", func(t *testing.T) {
		svc, mocks := newAccountService()
		repoError := errors.New("database error")

		mocks.accounts.On("Create", ctx, mock.AnythingOfType("*account.Account")).Return(repoError).Once()

		acc, err := svc.CreateAccount(ctx, uuid.New(), "Checking", 1000)

		assert.Error(t, err)
		assert.Nil(t, acc)
		assert.Equal(t, repoError, err)
		mocks.accounts.AssertExpectations(t)
	})
}

func TestAccountServiceImpl_SetBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("BalanceIncrease", func(t *testing.T) {
		svc, mocks := newAccountService()
		acc := testAccount(50000, 20000)

		mocks.accounts.On("WithTx", mock.Anything).Return().Once()
		mocks.accounts.On("LockForUpdate", ctx, acc.ID).Return(acc, nil).Once()
		mocks.accounts.On("Update", ctx, acc).Return(nil).Once()
		mocks.entries.On("WithTx", mock.Anything).Return().Once()
		mocks.entries.On("Create", ctx, mock.MatchedBy(func(entry *ledger.Entry) bool {
			return entry.Type == ledger.EntryTypeDeposit &&
				entry.Amount == 30000 &&
				entry.Balance == 80000 &&
				!entry.IsVirtual
		})).Return(nil).Once()
		mocks.outbox.On("WithTx", mock.Anything).Return().Once()
		mocks.outbox.On("Create", ctx, mock.AnythingOfType("*outbox.Message")).Return(nil).Once()

		result, err := svc.SetBalance(ctx, acc.ID, 80000, "payday")

		assert.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, int64(30000), result.Delta)
		assert.Equal(t, int64(80000), result.Account.Balance)
		assert.Equal(t, int64(50000), result.Account.AvailableBalance, "delta flows through the available balance")
		assert.Nil(t, result.Resolution)
		mocks.resolver.AssertNotCalled(t, "ResolveNegativeBalance", mock.Anything, mock.Anything, mock.Anything)
		mocks.accounts.AssertExpectations(t)
		mocks.entries.AssertExpectations(t)
		mocks.outbox.AssertExpectations(t)
	})

	t.Run("DropBelowZeroTriggersRecovery", func(t *testing.T) {
		svc, mocks := newAccountService()
		acc := testAccount(50000, 10000)

		mocks.accounts.On("WithTx", mock.Anything).Return().Once()
		mocks.accounts.On("LockForUpdate", ctx, acc.ID).Return(acc, nil).Once()
		mocks.accounts.On("Update", ctx, acc).Return(nil).Once()
		mocks.entries.On("WithTx", mock.Anything).Return().Once()
		mocks.entries.On("Create", ctx, mock.MatchedBy(func(entry *ledger.Entry) bool {
			return entry.Type == ledger.EntryTypeWithdrawal && entry.Amount == -30000
		})).Return(nil).Once()
		mocks.outbox.On("WithTx", mock.Anything).Return().Once()
		mocks.outbox.On("Create", ctx, mock.AnythingOfType("*outbox.Message")).Return(nil).Once()

		resolution := &engine.NegativeBalanceResult{
			Behavior: preference.NegativeAutoDeallocate,
			Handled:  true,
		}
		mocks.resolver.On("ResolveNegativeBalance", ctx, acc.ID, int64(20000)).Return(resolution, nil).Once()

		refreshed := testAccount(20000, 0)
		refreshed.ID = acc.ID
		mocks.accounts.On("GetByID", ctx, acc.ID).Return(refreshed, nil).Once()

		result, err := svc.SetBalance(ctx, acc.ID, 20000, "")

		assert.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, int64(-30000), result.Delta)
		assert.Equal(t, resolution, result.Resolution)
		assert.Equal(t, int64(0), result.Account.AvailableBalance, "balances refreshed after the drain")
		mocks.accounts.AssertExpectations(t)
		mocks.resolver.AssertExpectations(t)
	})

	t.Run("AccountNotFound", func(t *testing.T) {
		svc, mocks := newAccountService()
		accountID := uuid.New()

		mocks.accounts.On("WithTx", mock.Anything).Return().Once()
		mocks.accounts.On("LockForUpdate", ctx, accountID).Return(nil, account.ErrAccountNotFound{AccountID: accountID}).Once()

		result, err := svc.SetBalance(ctx, accountID, 1000, "")

		assert.ErrorIs(t, err, account.ErrAccountNotFound{})
		assert.Nil(t, result)
		mocks.accounts.AssertExpectations(t)
	})

	t.Run("LedgerWriteFailureAbortsTx", func(t *testing.T) {
		svc, mocks := newAccountService()
		acc := testAccount(50000, 20000)
		repoError := errors.New("insert failed")

		mocks.accounts.On("WithTx", mock.Anything).Return().Once()
		mocks.accounts.On("LockForUpdate", ctx, acc.ID).Return(acc, nil).Once()
		mocks.accounts.On("Update", ctx, acc).Return(nil).Once()
		mocks.entries.On("WithTx", mock.Anything).Return().Once()
		mocks.entries.On("Create", ctx, mock.AnythingOfType("*ledger.Entry")).Return(repoError).Once()

		result, err := svc.SetBalance(ctx, acc.ID, 60000, "")

		assert.Error(t, err)
		assert.Nil(t, result)
		mocks.outbox.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestAccountServiceImpl_ResolveNegative(t *testing.T) {
	ctx := context.Background()

	t.Run("DelegatesDeficitToEngine", func(t *testing.T) {
		svc, mocks := newAccountService()
		acc := testAccount(10000, -7500)

		mocks.accounts.On("GetByID", ctx, acc.ID).Return(acc, nil).Once()
		resolution := &engine.NegativeBalanceResult{Behavior: preference.NegativeAutoDeallocate, Handled: true}
		mocks.resolver.On("ResolveNegativeBalance", ctx, acc.ID, int64(7500)).Return(resolution, nil).Once()

		result, err := svc.ResolveNegative(ctx, acc.ID)

		assert.NoError(t, err)
		assert.Equal(t, resolution, result)
		mocks.resolver.AssertExpectations(t)
	})

	t.Run("NothingToRecover", func(t *testing.T) {
		svc, mocks := newAccountService()
		acc := testAccount(10000, 500)

		mocks.accounts.On("GetByID", ctx, acc.ID).Return(acc, nil).Once()

		result, err := svc.ResolveNegative(ctx, acc.ID)

		assert.NoError(t, err)
		require.NotNil(t, result)
		assert.True(t, result.Handled)
		mocks.resolver.AssertNotCalled(t, "ResolveNegativeBalance", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAccountServiceImpl_SetNegativeBalanceBehavior(t *testing.T) {
	ctx := context.Background()

	t.Run("StoresPreferenceForAccountOwner", func(t *testing.T) {
		svc, mocks := newAccountService()
		acc := testAccount(10000, 10000)

		mocks.accounts.On("GetByID", ctx, acc.ID).Return(acc, nil).Once()
		mocks.prefs.On("SetNegativeBalanceBehavior", ctx, acc.UserID, preference.NegativeNotifyOnly).Return(nil).Once()

		err := svc.SetNegativeBalanceBehavior(ctx, acc.ID, preference.NegativeNotifyOnly)

		assert.NoError(t, err)
		mocks.prefs.AssertExpectations(t)
	})

	t.Run("UnknownAccount", func(t *testing.T) {
		svc, mocks := newAccountService()
		accountID := uuid.New()

		mocks.accounts.On("GetByID", ctx, accountID).Return(nil, account.ErrAccountNotFound{AccountID: accountID}).Once()

		err := svc.SetNegativeBalanceBehavior(ctx, accountID, preference.NegativeNotifyOnly)

		assert.ErrorIs(t, err, account.ErrAccountNotFound{})
		mocks.prefs.AssertNotCalled(t, "SetNegativeBalanceBehavior", mock.Anything, mock.Anything, mock.Anything)
	})
}

package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stackbudget-ledger/internal/domain/account"
	"github.com/stackbudget-ledger/internal/domain/ledger"
	"github.com/stackbudget-ledger/internal/domain/outbox"
	"github.com/stackbudget-ledger/internal/domain/preference"
	"github.com/stackbudget-ledger/internal/engine"
)

// NegativeResolver is the slice of the engine this service needs for
// balance-drop recovery
type NegativeResolver interface {
	ResolveNegativeBalance(ctx context.Context, accountID uuid.UUID, deficit int64) (*engine.NegativeBalanceResult, error)
}

// AccountServiceImpl implements the AccountService interface
type AccountServiceImpl struct {
	db          engine.TxRunner
	accountRepo account.Repository
	ledgerRepo  ledger.Repository
	outboxRepo  outbox.Repository
	prefRepo    preference.Repository
	resolver    NegativeResolver
}

// NewAccountService creates a new account service
func NewAccountService(
	db engine.TxRunner,
	accountRepo account.Repository,
	ledgerRepo ledger.Repository,
	outboxRepo outbox.Repository,
	prefRepo preference.Repository,
	resolver NegativeResolver,
) AccountService {
	return &AccountServiceImpl{
		db:          db,
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		outboxRepo:  outboxRepo,
		prefRepo:    prefRepo,
		resolver:    resolver,
	}
}

// CreateAccount creates a new account with the given opening balance
func (s *AccountServiceImpl) CreateAccount(ctx context.Context, userID uuid.UUID, name string, openingBalance int64) (*account.Account, error) {
	acc, err := account.NewAccount(userID, name, openingBalance)
	if err != nil {
		return nil, err
	}

	if err := s.accountRepo.Create(ctx, acc); err != nil {
		return nil, err
	}

	return acc, nil
}

// GetAccountByID retrieves an account by its ID, returns ErrAccountNotFound if not found
func (s *AccountServiceImpl) GetAccountByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return s.accountRepo.GetByID(ctx, id)
}

// SetBalance applies a manual balance entry atomically with its ledger record,
// then runs negative-balance recovery if the available balance dropped below
// zero. Recovery happens after the balance commit so a failed drain never
// rolls back the real balance change.
func (s *AccountServiceImpl) SetBalance(ctx context.Context, accountID uuid.UUID, newBalance int64, note string) (*BalanceUpdateResult, error) {
	var result *BalanceUpdateResult
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		accounts := s.accountRepo.WithTx(tx)
		acc, err := accounts.LockForUpdate(ctx, accountID)
		if err != nil {
			return err
		}

		delta := acc.SetBalance(newBalance)
		if err := accounts.Update(ctx, acc); err != nil {
			return err
		}

		entryType := ledger.EntryTypeDeposit
		if delta < 0 {
			entryType = ledger.EntryTypeWithdrawal
		}
		entry := ledger.NewBalanceEntry(accountID, entryType, delta, acc.Balance, note)
		if err := s.ledgerRepo.WithTx(tx).Create(ctx, entry); err != nil {
			return err
		}

		msg, err := outbox.NewMessage(entry)
		if err != nil {
			return fmt.Errorf("failed to build outbox message for entry %s: %w", entry.ID, err)
		}
		if err := s.outboxRepo.WithTx(tx).Create(ctx, msg); err != nil {
			return err
		}

		result = &BalanceUpdateResult{Account: acc, Delta: delta}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Account.AvailableBalance < 0 {
		resolution, err := s.resolver.ResolveNegativeBalance(ctx, accountID, -result.Account.AvailableBalance)
		if resolution != nil {
			result.Resolution = resolution
			// Refresh balances after the drain
			if acc, getErr := s.accountRepo.GetByID(ctx, accountID); getErr == nil {
				result.Account = acc
			}
		}
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

// ResolveNegative re-runs recovery for an account still in deficit
func (s *AccountServiceImpl) ResolveNegative(ctx context.Context, accountID uuid.UUID) (*engine.NegativeBalanceResult, error) {
	acc, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc.AvailableBalance >= 0 {
		return &engine.NegativeBalanceResult{Handled: true}, nil
	}
	return s.resolver.ResolveNegativeBalance(ctx, accountID, -acc.AvailableBalance)
}

// SetNegativeBalanceBehavior stores the account owner's recovery preference
func (s *AccountServiceImpl) SetNegativeBalanceBehavior(ctx context.Context, accountID uuid.UUID, behavior preference.NegativeBalanceBehavior) error {
	acc, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	return s.prefRepo.SetNegativeBalanceBehavior(ctx, acc.UserID, behavior)
}

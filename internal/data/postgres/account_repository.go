// Package postgres provides PostgreSQL implementations of the domain
// repositories. It handles all database operations while maintaining
// transaction safety and proper error handling for the stack budget engine.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stackbudget-ledger/internal/domain/account"
	"github.com/stackbudget-ledger/internal/platform/persistence"
)

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewAccountRepository creates a new PostgreSQL account repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) account.Repository {
	return &AccountRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic
// operations across multiple repository calls.
func (r *AccountRepository) WithTx(tx pgx.Tx) account.Repository {
	return &AccountRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const accountColumns = "id, user_id, name, balance, available_balance, version, created_at, updated_at"

func scanAccount(row pgx.Row) (*account.Account, error) {
	var acc account.Account
	err := row.Scan(
		&acc.ID,
		&acc.UserID,
		&acc.Name,
		&acc.Balance,
		&acc.AvailableBalance,
		&acc.Version,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// Create stores a new account in the database
func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	query := `
		INSERT INTO accounts (id, user_id, name, balance, available_balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.querier.Exec(ctx, query,
		acc.ID,
		acc.UserID,
		acc.Name,
		acc.Balance,
		acc.AvailableBalance,
		acc.Version,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create account", "error", err)
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	acc, err := scanAccount(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{AccountID: id}
		}
		r.logger.Error("Failed to get account", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return acc, nil
}

// ListByUserID retrieves all accounts owned by a user
func (r *AccountRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY created_at`

	rows, err := r.querier.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list accounts", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}

	return accounts, rows.Err()
}

// Update updates an existing account using optimistic locking
func (r *AccountRepository) Update(ctx context.Context, acc *account.Account) error {
	query := `
		UPDATE accounts
		SET name = $1, balance = $2, available_balance = $3, version = $4, updated_at = $5
		WHERE id = $6 AND version = $7
	`

	result, err := r.querier.Exec(ctx, query,
		acc.Name,
		acc.Balance,
		acc.AvailableBalance,
		acc.Version,
		acc.UpdatedAt,
		acc.ID,
		acc.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update account", "id", acc.ID.String(), "error", err)
		return fmt.Errorf("failed to update account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrConcurrentModification{AccountID: acc.ID}
	}

	return nil
}

// AdjustAvailableBalance applies delta to available_balance as a single
// atomic increment, avoiding application-level read-modify-write. When
// guarded, the update is rejected if it would drive the available balance
// negative, which distinguishes "not enough free funds" from a missing row.
func (r *AccountRepository) AdjustAvailableBalance(ctx context.Context, id uuid.UUID, delta int64, guarded bool) (int64, int64, error) {
	query := `
		UPDATE accounts
		SET available_balance = available_balance + $1, version = version + 1, updated_at = NOW()
		WHERE id = $2
		RETURNING balance, available_balance
	`
	if guarded {
		query = `
		UPDATE accounts
		SET available_balance = available_balance + $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND available_balance + $1 >= 0
		RETURNING balance, available_balance
	`
	}

	var balance, available int64
	err := r.querier.QueryRow(ctx, query, delta, id).Scan(&balance, &available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if !guarded {
				return 0, 0, account.ErrAccountNotFound{AccountID: id}
			}
			// Guarded update matched no row: either the account is gone or
			// the available balance cannot cover the delta.
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return 0, 0, getErr
			}
			return 0, 0, account.ErrInsufficientAvailableFunds
		}
		r.logger.Error("Failed to adjust available balance", "id", id.String(), "error", err)
		return 0, 0, fmt.Errorf("failed to adjust available balance: %w", err)
	}

	return balance, available, nil
}

// LockForUpdate obtains a pessimistic lock on the account and returns its
// current state. This should be used within a transaction when strong
// consistency is required.
func (r *AccountRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	acc, err := scanAccount(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{AccountID: id}
		}
		r.logger.Error("Failed to lock account for update", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock account for update: %w", err)
	}

	return acc, nil
}

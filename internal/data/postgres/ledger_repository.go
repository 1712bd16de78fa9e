package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stackbudget-ledger/internal/domain/ledger"
	"github.com/stackbudget-ledger/internal/platform/persistence"
)

// LedgerRepository implements the canonical ledger.Repository interface for
// PostgreSQL. Entries are written in the same transaction as the balance
// changes they record; the Mongo history repository mirrors them later.
type LedgerRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.Repository {
	return &LedgerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *LedgerRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return &LedgerRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create appends a ledger entry. Entries are never updated afterwards.
func (r *LedgerRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	query := `
		INSERT INTO virtual_transactions (id, account_id, stack_id, type, amount, balance, is_virtual, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.querier.Exec(ctx, query,
		entry.ID,
		entry.AccountID,
		entry.StackID,
		entry.Type,
		entry.Amount,
		entry.Balance,
		entry.IsVirtual,
		entry.Note,
		entry.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create ledger entry", "entry_id", entry.ID.String(), "error", err)
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}

	return nil
}

// GetByID retrieves a ledger entry by its ID
func (r *LedgerRepository) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	query := `
		SELECT id, account_id, stack_id, type, amount, balance, is_virtual, note, created_at
		FROM virtual_transactions
		WHERE id = $1
	`

	var entry ledger.Entry
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&entry.ID,
		&entry.AccountID,
		&entry.StackID,
		&entry.Type,
		&entry.Amount,
		&entry.Balance,
		&entry.IsVirtual,
		&entry.Note,
		&entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrEntryNotFound{EntryID: id}
		}
		r.logger.Error("Failed to get ledger entry", "entry_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return &entry, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stackbudget-ledger/internal/domain/stack"
	"github.com/stackbudget-ledger/internal/platform/persistence"
)

// StackRepository implements the stack.Repository interface for PostgreSQL
type StackRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewStackRepository creates a new PostgreSQL stack repository
func NewStackRepository(logger *slog.Logger, db *persistence.PostgresDB) stack.Repository {
	return &StackRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *StackRepository) WithTx(tx pgx.Tx) stack.Repository {
	return &StackRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const stackColumns = `id, account_id, name, current_amount, target_amount, target_due_date,
		priority, is_active, auto_allocate, auto_allocate_amount, auto_allocate_frequency,
		auto_allocate_next_date, reset_behavior, recurring_period, overflow_behavior,
		is_completed, pending_reset, version, created_at, updated_at`

func scanStack(row pgx.Row) (*stack.Stack, error) {
	var s stack.Stack
	err := row.Scan(
		&s.ID,
		&s.AccountID,
		&s.Name,
		&s.CurrentAmount,
		&s.TargetAmount,
		&s.TargetDueDate,
		&s.Priority,
		&s.IsActive,
		&s.AutoAllocate,
		&s.AutoAllocateAmount,
		&s.AutoAllocateFrequency,
		&s.AutoAllocateNextDate,
		&s.ResetBehavior,
		&s.RecurringPeriod,
		&s.OverflowBehavior,
		&s.IsCompleted,
		&s.PendingReset,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StackRepository) scanStacks(rows pgx.Rows) ([]*stack.Stack, error) {
	defer rows.Close()

	var stacks []*stack.Stack
	for rows.Next() {
		s, err := scanStack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stack: %w", err)
		}
		stacks = append(stacks, s)
	}
	return stacks, rows.Err()
}

// Create stores a new stack in the database
func (r *StackRepository) Create(ctx context.Context, s *stack.Stack) error {
	query := `
		INSERT INTO stacks (id, account_id, name, current_amount, target_amount, target_due_date,
			priority, is_active, auto_allocate, auto_allocate_amount, auto_allocate_frequency,
			auto_allocate_next_date, reset_behavior, recurring_period, overflow_behavior,
			is_completed, pending_reset, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.querier.Exec(ctx, query,
		s.ID, s.AccountID, s.Name, s.CurrentAmount, s.TargetAmount, s.TargetDueDate,
		s.Priority, s.IsActive, s.AutoAllocate, s.AutoAllocateAmount, s.AutoAllocateFrequency,
		s.AutoAllocateNextDate, s.ResetBehavior, s.RecurringPeriod, s.OverflowBehavior,
		s.IsCompleted, s.PendingReset, s.Version, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create stack", "error", err)
		return fmt.Errorf("failed to create stack: %w", err)
	}

	return nil
}

// GetByID retrieves a stack by its ID
func (r *StackRepository) GetByID(ctx context.Context, id uuid.UUID) (*stack.Stack, error) {
	query := `SELECT ` + stackColumns + ` FROM stacks WHERE id = $1`

	s, err := scanStack(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, stack.ErrStackNotFound{StackID: id}
		}
		r.logger.Error("Failed to get stack", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get stack: %w", err)
	}

	return s, nil
}

// ListByAccountID retrieves all stacks of an account in priority order
func (r *StackRepository) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*stack.Stack, error) {
	query := `SELECT ` + stackColumns + ` FROM stacks WHERE account_id = $1 ORDER BY priority`

	rows, err := r.querier.Query(ctx, query, accountID)
	if err != nil {
		r.logger.Error("Failed to list stacks", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to list stacks: %w", err)
	}

	return r.scanStacks(rows)
}

// Update updates an existing stack using optimistic locking
func (r *StackRepository) Update(ctx context.Context, s *stack.Stack) error {
	query := `
		UPDATE stacks
		SET name = $1, current_amount = $2, target_amount = $3, target_due_date = $4,
			priority = $5, is_active = $6, auto_allocate = $7, auto_allocate_amount = $8,
			auto_allocate_frequency = $9, auto_allocate_next_date = $10, reset_behavior = $11,
			recurring_period = $12, overflow_behavior = $13, is_completed = $14,
			pending_reset = $15, version = $16, updated_at = $17
		WHERE id = $18 AND version = $19
	`

	result, err := r.querier.Exec(ctx, query,
		s.Name, s.CurrentAmount, s.TargetAmount, s.TargetDueDate,
		s.Priority, s.IsActive, s.AutoAllocate, s.AutoAllocateAmount,
		s.AutoAllocateFrequency, s.AutoAllocateNextDate, s.ResetBehavior,
		s.RecurringPeriod, s.OverflowBehavior, s.IsCompleted,
		s.PendingReset, s.Version, s.UpdatedAt,
		s.ID, s.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update stack", "id", s.ID.String(), "error", err)
		return fmt.Errorf("failed to update stack: %w", err)
	}

	if result.RowsAffected() == 0 {
		return stack.ErrStackNotFound{StackID: s.ID}
	}

	return nil
}

// Delete removes a stack record
func (r *StackRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.querier.Exec(ctx, `DELETE FROM stacks WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete stack", "id", id.String(), "error", err)
		return fmt.Errorf("failed to delete stack: %w", err)
	}

	if result.RowsAffected() == 0 {
		return stack.ErrStackNotFound{StackID: id}
	}

	return nil
}

// AdjustCurrentAmount applies delta to current_amount as a single atomic
// increment and returns the resulting amount
func (r *StackRepository) AdjustCurrentAmount(ctx context.Context, id uuid.UUID, delta int64) (int64, error) {
	query := `
		UPDATE stacks
		SET current_amount = current_amount + $1, version = version + 1, updated_at = NOW()
		WHERE id = $2
		RETURNING current_amount
	`

	var current int64
	err := r.querier.QueryRow(ctx, query, delta, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, stack.ErrStackNotFound{StackID: id}
		}
		r.logger.Error("Failed to adjust stack amount", "id", id.String(), "error", err)
		return 0, fmt.Errorf("failed to adjust stack amount: %w", err)
	}

	return current, nil
}

// LockForUpdate obtains a pessimistic lock on the stack row so the overflow
// and overdraft checks observe a consistent current amount
func (r *StackRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*stack.Stack, error) {
	query := `SELECT ` + stackColumns + ` FROM stacks WHERE id = $1 FOR UPDATE`

	s, err := scanStack(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, stack.ErrStackNotFound{StackID: id}
		}
		r.logger.Error("Failed to lock stack for update", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock stack for update: %w", err)
	}

	return s, nil
}

// NextByPriority returns the active stack with the next-worse priority,
// or nil when the source stack is already the last one
func (r *StackRepository) NextByPriority(ctx context.Context, accountID uuid.UUID, afterPriority int) (*stack.Stack, error) {
	query := `SELECT ` + stackColumns + `
		FROM stacks
		WHERE account_id = $1 AND is_active AND priority > $2
		ORDER BY priority
		LIMIT 1
		FOR UPDATE`

	s, err := scanStack(r.querier.QueryRow(ctx, query, accountID, afterPriority))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // No next-priority stack exists
		}
		r.logger.Error("Failed to get next-priority stack", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to get next-priority stack: %w", err)
	}

	return s, nil
}

// ListDrainOrder returns active funded stacks, worst priority first
func (r *StackRepository) ListDrainOrder(ctx context.Context, accountID uuid.UUID) ([]*stack.Stack, error) {
	query := `SELECT ` + stackColumns + `
		FROM stacks
		WHERE account_id = $1 AND is_active AND current_amount > 0
		ORDER BY priority DESC`

	rows, err := r.querier.Query(ctx, query, accountID)
	if err != nil {
		r.logger.Error("Failed to list stacks in drain order", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to list stacks in drain order: %w", err)
	}

	return r.scanStacks(rows)
}

// ListAutoAllocateDue returns active auto-allocating stacks due at or before now
func (r *StackRepository) ListAutoAllocateDue(ctx context.Context, now time.Time, limit int) ([]*stack.Stack, error) {
	query := `SELECT ` + stackColumns + `
		FROM stacks
		WHERE is_active AND auto_allocate AND auto_allocate_next_date <= $1
		ORDER BY auto_allocate_next_date
		LIMIT $2`

	rows, err := r.querier.Query(ctx, query, now, limit)
	if err != nil {
		r.logger.Error("Failed to list due auto-allocate stacks", "error", err)
		return nil, fmt.Errorf("failed to list due auto-allocate stacks: %w", err)
	}

	return r.scanStacks(rows)
}

// SetAutoAllocateNextDate advances a stack's next contribution date
func (r *StackRepository) SetAutoAllocateNextDate(ctx context.Context, id uuid.UUID, next time.Time) error {
	query := `
		UPDATE stacks
		SET auto_allocate_next_date = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, next, id)
	if err != nil {
		r.logger.Error("Failed to set auto-allocate next date", "id", id.String(), "error", err)
		return fmt.Errorf("failed to set auto-allocate next date: %w", err)
	}

	if result.RowsAffected() == 0 {
		return stack.ErrStackNotFound{StackID: id}
	}

	return nil
}

// MaxPriority returns the highest priority value in use for the account
func (r *StackRepository) MaxPriority(ctx context.Context, accountID uuid.UUID) (int, error) {
	var max int
	err := r.querier.QueryRow(ctx,
		`SELECT COALESCE(MAX(priority), 0) FROM stacks WHERE account_id = $1`, accountID,
	).Scan(&max)
	if err != nil {
		r.logger.Error("Failed to get max priority", "account_id", accountID.String(), "error", err)
		return 0, fmt.Errorf("failed to get max priority: %w", err)
	}

	return max, nil
}

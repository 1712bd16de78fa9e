package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stackbudget-ledger/internal/domain/preference"
	"github.com/stackbudget-ledger/internal/platform/persistence"
)

// PreferenceRepository implements the preference.Repository interface for PostgreSQL
type PreferenceRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewPreferenceRepository creates a new PostgreSQL preference repository
func NewPreferenceRepository(logger *slog.Logger, db *persistence.PostgresDB) preference.Repository {
	return &PreferenceRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *PreferenceRepository) WithTx(tx pgx.Tx) preference.Repository {
	return &PreferenceRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// NegativeBalanceBehavior resolves a user's negative-balance preference,
// defaulting to auto_deallocate when no row exists
func (r *PreferenceRepository) NegativeBalanceBehavior(ctx context.Context, userID uuid.UUID) (preference.NegativeBalanceBehavior, error) {
	query := `SELECT negative_balance_behavior FROM user_preferences WHERE user_id = $1`

	var behavior preference.NegativeBalanceBehavior
	err := r.querier.QueryRow(ctx, query, userID).Scan(&behavior)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return preference.NegativeAutoDeallocate, nil
		}
		r.logger.Error("Failed to get negative-balance behavior", "user_id", userID.String(), "error", err)
		return "", fmt.Errorf("failed to get negative-balance behavior: %w", err)
	}

	if !behavior.IsValid() {
		return preference.NegativeAutoDeallocate, nil
	}
	return behavior, nil
}

// SetNegativeBalanceBehavior stores a user's negative-balance preference
func (r *PreferenceRepository) SetNegativeBalanceBehavior(ctx context.Context, userID uuid.UUID, behavior preference.NegativeBalanceBehavior) error {
	query := `
		INSERT INTO user_preferences (user_id, negative_balance_behavior, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET negative_balance_behavior = $2, updated_at = NOW()
	`

	_, err := r.querier.Exec(ctx, query, userID, behavior)
	if err != nil {
		r.logger.Error("Failed to set negative-balance behavior", "user_id", userID.String(), "error", err)
		return fmt.Errorf("failed to set negative-balance behavior: %w", err)
	}

	return nil
}

package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stackbudget-ledger/internal/domain/ledger"
)

const (
	// HistoryCollectionName is the name of the transaction-history collection
	HistoryCollectionName = "transaction_history"
)

// HistoryRepository implements the ledger.HistoryRepository interface for
// MongoDB. It is the read model behind the paginated history API; the
// canonical ledger lives in PostgreSQL.
type HistoryRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewHistoryRepository creates a new MongoDB history repository
func NewHistoryRepository(logger *slog.Logger, db *mongo.Database) ledger.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Insert mirrors a committed ledger entry. Inserting the same entry twice is
// a no-op, which keeps outbox retries idempotent.
func (r *HistoryRepository) Insert(ctx context.Context, entry *ledger.Entry) error {
	collection := r.db.Collection(HistoryCollectionName)

	existing, err := r.GetByEntryID(ctx, entry.ID)
	if err != nil && !errors.Is(err, ledger.ErrEntryNotFound{}) {
		r.logger.Error("Failed to check for existing history entry",
			"entry_id", entry.ID.String(),
			"error", err)
		return fmt.Errorf("failed to check for existing history entry: %w", err)
	}
	if existing != nil {
		return nil
	}

	if _, err := collection.InsertOne(ctx, entry); err != nil {
		r.logger.Error("Failed to insert history entry",
			"entry_id", entry.ID.String(),
			"error", err)
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	return nil
}

// GetByEntryID retrieves a mirrored entry by its ledger entry ID.
// Returns ErrEntryNotFound if the entry has not been mirrored yet.
func (r *HistoryRepository) GetByEntryID(ctx context.Context, entryID uuid.UUID) (*ledger.Entry, error) {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"entry_id": entryID}
	var entry ledger.Entry
	err := collection.FindOne(ctx, filter).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ledger.ErrEntryNotFound{EntryID: entryID}
		}
		r.logger.Error("Failed to get history entry",
			"entry_id", entryID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get history entry: %w", err)
	}

	return &entry, nil
}

// GetByAccountID retrieves paginated history entries for an account.
// Results are sorted by creation time in descending order (newest first).
func (r *HistoryRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Entry, error) {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"account_id": accountID}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get history entries",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get history entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*ledger.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode history entries",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode history entries: %w", err)
	}

	return entries, nil
}

// CountByAccountID counts the total number of history entries for an account
func (r *HistoryRepository) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"account_id": accountID}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count history entries",
			"account_id", accountID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count history entries: %w", err)
	}

	return count, nil
}

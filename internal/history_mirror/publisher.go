package history_mirror

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stackbudget-ledger/internal/domain/ledger"
	"github.com/stackbudget-ledger/internal/domain/outbox"
	"github.com/stackbudget-ledger/internal/domain/shared"
)

// HistoryPublisher mirrors one outbox message into the history read model
type HistoryPublisher interface {
	PublishToHistory(ctx context.Context, message *outbox.Message) error
}

// HistoryPublisherImpl implements HistoryPublisher
type HistoryPublisherImpl struct {
	outboxRepo  outbox.Repository
	historyRepo ledger.HistoryRepository
	logger      *slog.Logger
}

// NewHistoryPublisher creates a new publisher
func NewHistoryPublisher(
	outboxRepo outbox.Repository,
	historyRepo ledger.HistoryRepository,
	logger *slog.Logger,
) HistoryPublisher {
	return &HistoryPublisherImpl{
		outboxRepo:  outboxRepo,
		historyRepo: historyRepo,
		logger:      logger,
	}
}

// PublishToHistory writes the message's ledger entry into the read model and
// marks the message PROCESSED. The insert is idempotent, so a retry after a
// crash between the write and the status update is harmless.
func (p *HistoryPublisherImpl) PublishToHistory(ctx context.Context, message *outbox.Message) error {
	entry, err := message.GetLedgerEntry()
	if err != nil {
		p.logger.Error("Failed to unmarshal ledger entry from outbox payload",
			"outbox_id", message.ID, "entry_id", message.EntryID, "error", err,
		)
		// A malformed payload will never succeed; fail it immediately.
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after unmarshal error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	if err := p.historyRepo.Insert(ctx, entry); err != nil {
		p.logger.Error("Failed to insert ledger entry into history read model", "entry_id", entry.ID, "error", err)
		return fmt.Errorf("failed to insert history entry %s: %w", entry.ID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		p.logger.Error("Failed to update outbox message status to PROCESSED",
			"outbox_id", message.ID, "entry_id", message.EntryID, "error", err,
		)
		return fmt.Errorf("history write for %s OK, but failed to mark outbox %d as PROCESSED: %w", message.EntryID, message.ID, err)
	}

	p.logger.Debug("Outbox message mirrored into history", "outbox_id", message.ID, "entry_id", message.EntryID)
	return nil
}

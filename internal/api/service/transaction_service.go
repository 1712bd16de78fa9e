package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stackbudget-ledger/internal/domain/ledger"
)

// TransactionServiceImpl implements the TransactionService interface
type TransactionServiceImpl struct {
	historyRepo ledger.HistoryRepository
}

// NewTransactionService creates a new transaction history service
func NewTransactionService(historyRepo ledger.HistoryRepository) TransactionService {
	return &TransactionServiceImpl{
		historyRepo: historyRepo,
	}
}

// GetTransactionByID retrieves a single history entry, nil when not yet mirrored
func (s *TransactionServiceImpl) GetTransactionByID(ctx context.Context, entryID uuid.UUID) (*ledger.Entry, error) {
	entry, err := s.historyRepo.GetByEntryID(ctx, entryID)
	if err != nil {
		if errors.Is(err, ledger.ErrEntryNotFound{}) {
			return nil, nil
		}
		return nil, err
	}
	return entry, nil
}

// GetTransactionsByAccountID retrieves paginated history for an account
func (s *TransactionServiceImpl) GetTransactionsByAccountID(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*ledger.Entry, int64, error) {
	offset := (page - 1) * perPage

	entries, err := s.historyRepo.GetByAccountID(ctx, accountID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.historyRepo.CountByAccountID(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stackbudget-ledger/internal/domain/outbox"
	"github.com/stackbudget-ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxRepository_Create(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: logger}

	msg := &outbox.Message{
		EntryID:   uuid.New(),
		AccountID: uuid.New(),
		Payload:   json.RawMessage(`{"amount":1000}`),
		Status:    shared.OutboxStatusPending,
		Attempts:  0,
		CreatedAt: time.Now(),
	}

	query := `
		INSERT INTO outbox_messages \(entry_id, account_id, payload, status, attempts, created_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6\)
		RETURNING id
	`

	t.Run("success assigns the generated id", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"id"}).AddRow(int64(42))
		mock.ExpectQuery(query).
			WithArgs(msg.EntryID, msg.AccountID, msg.Payload, msg.Status, msg.Attempts, msg.CreatedAt).
			WillReturnRows(rows)

		err := repo.Create(ctx, msg)
		assert.NoError(t, err)
		assert.Equal(t, int64(42), msg.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(msg.EntryID, msg.AccountID, msg.Payload, msg.Status, msg.Attempts, msg.CreatedAt).
			WillReturnError(errors.New("db error"))

		err := repo.Create(ctx, msg)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create outbox message")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_GetPending(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: logger}

	query := `
		SELECT id, entry_id, account_id, payload, status, attempts, created_at, last_attempt_at
		FROM outbox_messages
		WHERE status = \$1
		ORDER BY created_at
		LIMIT \$2
		FOR UPDATE SKIP LOCKED
	`

	t.Run("returns pending messages oldest first", func(t *testing.T) {
		now := time.Now()
		rows := pgxmock.NewRows([]string{"id", "entry_id", "account_id", "payload", "status", "attempts", "created_at", "last_attempt_at"}).
			AddRow(int64(1), uuid.New(), uuid.New(), json.RawMessage(`{}`), shared.OutboxStatusPending, 0, now.Add(-time.Minute), nil).
			AddRow(int64(2), uuid.New(), uuid.New(), json.RawMessage(`{}`), shared.OutboxStatusPending, 1, now, &now)

		mock.ExpectQuery(query).WithArgs(shared.OutboxStatusPending, 10).WillReturnRows(rows)

		messages, err := repo.GetPending(ctx, 10)
		assert.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, int64(1), messages[0].ID)
		assert.Equal(t, 1, messages[1].Attempts)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty batch", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"id", "entry_id", "account_id", "payload", "status", "attempts", "created_at", "last_attempt_at"})
		mock.ExpectQuery(query).WithArgs(shared.OutboxStatusPending, 10).WillReturnRows(rows)

		messages, err := repo.GetPending(ctx, 10)
		assert.NoError(t, err)
		assert.Empty(t, messages)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: logger}

	query := `
		UPDATE outbox_messages
		SET status = \$1, last_attempt_at = NOW\(\)
		WHERE id = \$2
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(shared.OutboxStatusProcessed, int64(7)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.UpdateStatus(ctx, 7, shared.OutboxStatusProcessed)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(shared.OutboxStatusFailedToPublish, int64(7)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdateStatus(ctx, 7, shared.OutboxStatusFailedToPublish)
		var notFoundErr outbox.ErrMessageNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, int64(7), notFoundErr.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_IncrementAttempts(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: logger}

	query := `
		UPDATE outbox_messages
		SET attempts = attempts \+ 1, last_attempt_at = NOW\(\)
		WHERE id = \$1
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(int64(3)).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.IncrementAttempts(ctx, 3)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(int64(3)).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.IncrementAttempts(ctx, 3)
		var notFoundErr outbox.ErrMessageNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

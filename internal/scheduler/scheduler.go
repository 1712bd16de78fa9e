// Package scheduler runs the recurring auto-allocation batch: every active
// stack with a due contribution date gets one allocation attempt per run.
// Failures are isolated per stack and never advance that stack's next date,
// so a missed contribution is retried on the next run rather than lost.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stackbudget-ledger/internal/config"
	"github.com/stackbudget-ledger/internal/domain/account"
	"github.com/stackbudget-ledger/internal/domain/shared"
	"github.com/stackbudget-ledger/internal/domain/stack"
	"github.com/stackbudget-ledger/internal/engine"
	"github.com/stackbudget-ledger/internal/platform/messaging/producers"
)

const lockKey = "scheduler:auto_allocate:lock"

// Allocator is the slice of the engine the scheduler drives
type Allocator interface {
	Allocate(ctx context.Context, req engine.AllocateRequest) (*engine.AllocationResult, error)
}

// Notifier publishes skip notifications; nil disables publishing
type Notifier interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

// ItemOutcome classifies one stack's batch result
type ItemOutcome string

const (
	OutcomeAllocated ItemOutcome = "allocated"
	// OutcomeSkipped means insufficient available funds this cycle; the next
	// date is not advanced and the contribution is retried on the next run.
	OutcomeSkipped ItemOutcome = "skipped"
	OutcomeFailed  ItemOutcome = "failed"
)

// BatchItem reports one stack's outcome within a batch run
type BatchItem struct {
	StackID   uuid.UUID   `json:"stack_id"`
	StackName string      `json:"stack_name"`
	AccountID uuid.UUID   `json:"account_id"`
	Amount    int64       `json:"amount"`
	Outcome   ItemOutcome `json:"outcome"`
	Error     string      `json:"error,omitempty"`
}

// BatchSummary aggregates a batch run
type BatchSummary struct {
	Due       int         `json:"due"`
	Allocated int         `json:"allocated"`
	Skipped   int         `json:"skipped"`
	Failed    int         `json:"failed"`
	Items     []BatchItem `json:"items,omitempty"`
}

// Scheduler periodically funds auto-allocating stacks through the engine
type Scheduler struct {
	allocator Allocator
	stacks    stack.Repository
	pool      *ants.Pool
	redis     *redis.Client // nil disables the distributed batch lock
	notifier  Notifier
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	lockTTL   time.Duration
	runnerID  string
}

// New creates a scheduler with a worker pool of the configured size
func New(
	cfg *config.SchedulerConfig,
	poolSize int,
	allocator Allocator,
	stacks stack.Repository,
	redisClient *redis.Client,
	notifier Notifier,
	logger *slog.Logger,
) (*Scheduler, error) {
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		allocator: allocator,
		stacks:    stacks,
		pool:      pool,
		redis:     redisClient,
		notifier:  notifier,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		lockTTL:   cfg.LockTTL,
		runnerID:  uuid.New().String(),
	}, nil
}

// Start runs batches on a ticker until the context is canceled
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting auto-allocation scheduler",
		"interval", s.interval.String(),
		"batch_size", s.batchSize,
	)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Auto-allocation scheduler stopping due to context cancellation.")
			return
		case <-ticker.C:
			if _, err := s.RunBatch(ctx); err != nil {
				s.logger.Error("Auto-allocation batch failed", "error", err)
			}
		}
	}
}

// Shutdown releases the worker pool
func (s *Scheduler) Shutdown() {
	s.logger.Info("Shutting down scheduler worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// RunBatch performs one pass over all due stacks. When another scheduler
// instance holds the batch lock the run is a no-op.
func (s *Scheduler) RunBatch(ctx context.Context) (*BatchSummary, error) {
	acquired, err := s.acquireLock(ctx)
	if err != nil {
		return nil, err
	}
	if !acquired {
		s.logger.Info("Batch lock held by another scheduler instance, skipping run")
		return &BatchSummary{}, nil
	}
	defer s.releaseLock(ctx)

	due, err := s.stacks.ListAutoAllocateDue(ctx, time.Now(), s.batchSize)
	if err != nil {
		return nil, err
	}

	summary := &BatchSummary{Due: len(due)}
	if len(due) == 0 {
		return summary, nil
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, stk := range due {
		stk := stk
		wg.Add(1)
		submitErr := s.pool.Submit(func() {
			defer wg.Done()
			item := s.processStack(ctx, stk)
			mu.Lock()
			summary.Items = append(summary.Items, item)
			switch item.Outcome {
			case OutcomeAllocated:
				summary.Allocated++
			case OutcomeSkipped:
				summary.Skipped++
			default:
				summary.Failed++
			}
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			s.logger.Error("Failed to submit stack to worker pool", "stack_id", stk.ID.String(), "error", submitErr)
			mu.Lock()
			summary.Failed++
			mu.Unlock()
		}
	}
	wg.Wait()

	s.logger.Info("Auto-allocation batch completed",
		"due", summary.Due,
		"allocated", summary.Allocated,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

// processStack attempts one contribution. The next date is advanced only
// after a successful allocation.
func (s *Scheduler) processStack(ctx context.Context, stk *stack.Stack) BatchItem {
	item := BatchItem{
		StackID:   stk.ID,
		StackName: stk.Name,
		AccountID: stk.AccountID,
		Amount:    stk.AutoAllocateAmount,
	}

	_, err := s.allocator.Allocate(ctx, engine.AllocateRequest{
		StackID: stk.ID,
		Amount:  stk.AutoAllocateAmount,
		Note:    "Scheduled contribution to " + stk.Name,
	})
	if err != nil {
		if errors.Is(err, account.ErrInsufficientAvailableFunds) {
			// Not an error: skip this cycle, retry next run.
			s.logger.Warn("Insufficient available funds for scheduled contribution",
				"stack_id", stk.ID.String(),
				"amount", stk.AutoAllocateAmount,
			)
			s.notifySkip(ctx, stk)
			item.Outcome = OutcomeSkipped
			return item
		}
		if errors.Is(err, stack.ErrStackInactive) || errors.Is(err, stack.ErrStackNotFound{}) {
			// The stack changed under us; nothing to retry.
			item.Outcome = OutcomeSkipped
			item.Error = err.Error()
			return item
		}
		s.logger.Error("Scheduled allocation failed", "stack_id", stk.ID.String(), "error", err)
		item.Outcome = OutcomeFailed
		item.Error = err.Error()
		return item
	}

	next := stk.AutoAllocateFrequency.Next(*stk.AutoAllocateNextDate)
	if err := s.stacks.SetAutoAllocateNextDate(ctx, stk.ID, next); err != nil {
		s.logger.Error("Failed to advance auto-allocate next date", "stack_id", stk.ID.String(), "error", err)
		item.Outcome = OutcomeFailed
		item.Error = err.Error()
		return item
	}

	item.Outcome = OutcomeAllocated
	return item
}

// notifySkip publishes an ALLOCATION_SKIPPED notification, best effort
func (s *Scheduler) notifySkip(ctx context.Context, stk *stack.Stack) {
	if s.notifier == nil {
		return
	}
	n := producers.Notification{
		Kind:      shared.NotificationAllocationSkip,
		AccountID: stk.AccountID,
		StackID:   &stk.ID,
		StackName: stk.Name,
		Amount:    stk.AutoAllocateAmount,
		Message:   "Scheduled contribution to " + stk.Name + " was skipped: insufficient available funds",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.notifier.Publish(ctx, stk.AccountID.String(), n); err != nil {
		s.logger.Error("Failed to publish skip notification", "stack_id", stk.ID.String(), "error", err)
	}
}

func (s *Scheduler) acquireLock(ctx context.Context) (bool, error) {
	if s.redis == nil {
		return true, nil
	}
	return s.redis.SetNX(ctx, lockKey, s.runnerID, s.lockTTL).Result()
}

func (s *Scheduler) releaseLock(ctx context.Context) {
	if s.redis == nil {
		return
	}
	// Only release a lock this instance still owns.
	current, err := s.redis.Get(ctx, lockKey).Result()
	if err != nil || current != s.runnerID {
		return
	}
	if err := s.redis.Del(ctx, lockKey).Err(); err != nil {
		s.logger.Error("Failed to release scheduler lock", "error", err)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/stackbudget-ledger/internal/config"
	"github.com/stackbudget-ledger/internal/data/mongo"
	"github.com/stackbudget-ledger/internal/data/postgres"
	"github.com/stackbudget-ledger/internal/engine"
	"github.com/stackbudget-ledger/internal/history_mirror"
	"github.com/stackbudget-ledger/internal/logger"
	"github.com/stackbudget-ledger/internal/platform/messaging/producers"
	"github.com/stackbudget-ledger/internal/platform/persistence"
	"github.com/stackbudget-ledger/internal/scheduler"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("scheduler")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Scheduler",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	redisClient, err := persistence.NewRedisClient(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer for stack notifications
	notificationProducer, err := producers.NewNotificationProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize Kafka notification producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	accountRepo := postgres.NewAccountRepository(log, postgresDB)
	stackRepo := postgres.NewStackRepository(log, postgresDB)
	ledgerRepo := postgres.NewLedgerRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	preferenceRepo := postgres.NewPreferenceRepository(log, postgresDB)
	historyRepo := mongo.NewHistoryRepository(log, mongoDB.Database())

	// Initialize the allocation engine
	allocEngine := engine.NewService(postgresDB, accountRepo, stackRepo, ledgerRepo, outboxRepo, preferenceRepo, log)

	// Initialize the auto-allocation scheduler
	autoScheduler, err := scheduler.New(
		&cfg.Scheduler,
		cfg.WorkerPool.Size,
		allocEngine,
		stackRepo,
		redisClient,
		notificationProducer,
		log,
	)
	if err != nil {
		log.Error("Failed to initialize scheduler", "error", err)
		os.Exit(1)
	}

	// Initialize the history mirror poller
	historyPublisher := history_mirror.NewHistoryPublisher(outboxRepo, historyRepo, log)
	poller := history_mirror.NewPoller(&cfg.Outbox, outboxRepo, historyPublisher, log)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start the auto-allocation scheduler in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		autoScheduler.Start(appCtx)
	}()

	// Start the history mirror poller in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	<-quit
	log.Info("Shutdown signal received")

	// Cancel the application context
	cancelAppCtx()

	// Shutdown the worker pool
	autoScheduler.Shutdown()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	if err = notificationProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	if err = redisClient.Close(); err != nil {
		log.Error("Error closing Redis client", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if err != nil {
		log.Error("Scheduler shutdown completed with errors")
	} else {
		log.Info("Scheduler shutdown completed successfully")
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/partnerhub/token-ledger/internal/config"
	"github.com/partnerhub/token-ledger/internal/data/postgres"
	"github.com/partnerhub/token-ledger/internal/dispatcher"
	"github.com/partnerhub/token-ledger/internal/logger"
	"github.com/partnerhub/token-ledger/internal/platform/messaging/producers"
	"github.com/partnerhub/token-ledger/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("notify_dispatcher")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Notification Dispatcher",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize database with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)

	// Initialize Kafka producers
	notificationProducer, err := producers.NewNotificationProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize notification Kafka producer", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// dlqProducer is nil when no DLQ topic is configured

	// Initialize the event publisher and outbox poller
	var dlq producers.DeadLetterPublisher
	if dlqProducer != nil {
		dlq = dlqProducer
	}
	eventPublisher := dispatcher.NewEventPublisher(outboxRepo, notificationProducer, dlq, cfg.Outbox.MaxRetryAttempts, log)

	poller, err := dispatcher.NewPoller(&cfg.Outbox, cfg.Dispatcher.PoolSize, outboxRepo, eventPublisher, log)
	if err != nil {
		log.Error("Failed to initialize outbox poller", "error", err)
		os.Exit(1)
	}

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start outbox poller in a goroutine
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

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("Poller stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Shutdown the worker pool
	poller.Shutdown()

	// Close Kafka producers
	if err = notificationProducer.Close(); err != nil {
		log.Error("Error closing notification Kafka producer", "error", err)
	}
	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	if err != nil {
		log.Error("Notification Dispatcher shutdown completed with errors")
	} else {
		log.Info("Notification Dispatcher shutdown completed successfully")
	}
}

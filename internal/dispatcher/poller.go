package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/partnerhub/token-ledger/internal/config"
	"github.com/partnerhub/token-ledger/internal/domain/notification"
)

// Poller drains pending outbox messages on a fixed interval and fans each
// batch out over a worker pool.
type Poller struct {
	outboxRepo   notification.Repository
	publisher    EventPublisher
	pool         *ants.Pool
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int
}

func NewPoller(
	cfg *config.OutboxConfig,
	poolSize int,
	outboxRepo notification.Repository,
	publisher EventPublisher,
	logger *slog.Logger,
) (*Poller, error) {
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher worker pool: %w", err)
	}

	return &Poller{
		outboxRepo:   outboxRepo,
		publisher:    publisher,
		pool:         pool,
		logger:       logger,
		pollInterval: cfg.PollingInterval,
		batchSize:    cfg.BatchSize,
	}, nil
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting notification outbox poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"pool_size", p.pool.Cap(),
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Notification outbox poller stopping due to context cancellation.")
			return
		case <-ticker.C:
			p.logger.Debug("Outbox poller tick: processing pending messages")
			if err := p.processPendingMessages(ctx); err != nil {
				p.logger.Error("Error during batch processing of pending outbox messages", "error", err)
			}
		}
	}
}

func (p *Poller) processPendingMessages(ctx context.Context) error {
	messages, err := p.outboxRepo.FetchPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending outbox messages: %w", err)
	}

	if len(messages) == 0 {
		p.logger.Debug("No pending outbox messages found.")
		return nil
	}

	p.logger.Info("Fetched pending outbox messages", "count", len(messages))

	// Publish the batch concurrently but finish it before the next tick so a
	// message is never in flight twice.
	var wg sync.WaitGroup
	for _, msg := range messages {
		msg := msg
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			// PublishEvent does its own failure bookkeeping.
			_ = p.publisher.PublishEvent(ctx, msg)
		})
		if err != nil {
			wg.Done()
			p.logger.Error("Failed to submit outbox message to worker pool",
				"outbox_id", msg.ID.String(), "error", err,
			)
		}
	}
	wg.Wait()

	return nil
}

// Shutdown releases the worker pool.
func (p *Poller) Shutdown() {
	p.logger.Info("Shutting down dispatcher worker pool", "running_workers", p.pool.Running())
	p.pool.Release()
}

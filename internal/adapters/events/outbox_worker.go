package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/makersrow/escrow-engine/internal/domain"
	"github.com/makersrow/escrow-engine/internal/ports"
)

// OutboxWorker drains the transactional outbox into the event publisher.
// Records are claimed with a token and a lease so multiple worker instances
// never double-publish; a record that keeps failing past maxRetries is
// dead-lettered and left for operator inspection.
type OutboxWorker struct {
	logger     *slog.Logger
	outbox     ports.OutboxRepository
	publisher  ports.EventPublisher
	interval   time.Duration
	batchSize  int
	claimLease time.Duration
	maxRetries int
}

func NewOutboxWorker(logger *slog.Logger, outbox ports.OutboxRepository, publisher ports.EventPublisher, interval time.Duration, batchSize int) *OutboxWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxWorker{
		logger:     logger,
		outbox:     outbox,
		publisher:  publisher,
		interval:   interval,
		batchSize:  batchSize,
		claimLease: time.Minute,
		maxRetries: 10,
	}
}

func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if err := w.processOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "outbox iteration failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *OutboxWorker) processOnce(ctx context.Context) error {
	claimToken := uuid.NewString()
	claimUntil := time.Now().UTC().Add(w.claimLease)
	records, err := w.outbox.ClaimUnpublished(ctx, w.batchSize, claimToken, claimUntil)
	if err != nil {
		return err
	}
	for _, rec := range records {
		now := time.Now().UTC()
		if !domain.IsEmittedEvent(rec.EventType) {
			// A type we never emit means a schema drift or a bad migration;
			// retrying will not fix it.
			_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, domain.ErrUnsupportedEventType.Error(), now)
			w.logger.ErrorContext(ctx, "outbox record has unknown event type",
				"outbox_id", rec.OutboxID, "event_type", rec.EventType)
			continue
		}
		if err := w.publisher.Publish(ctx, rec.EventType, rec.Payload, rec.PartitionKey); err != nil {
			if rec.RetryCount+1 >= w.maxRetries {
				_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, err.Error(), now)
				w.logger.ErrorContext(ctx, "outbox record dead-lettered",
					"outbox_id", rec.OutboxID, "event_type", rec.EventType, "retries", rec.RetryCount+1)
				continue
			}
			_ = w.outbox.MarkFailed(ctx, rec.OutboxID, claimToken, err.Error(), now)
			continue
		}
		_ = w.outbox.MarkPublished(ctx, rec.OutboxID, claimToken, now)
	}
	return nil
}

package worker

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/recruitflow/unipile-sync/internal/domain"
)

// EventSource is the slice of the event log the reprocessor reads.
type EventSource interface {
	GetEvent(ctx context.Context, eventID string) (*domain.WebhookEvent, error)
	ListUnprocessed(ctx context.Context, maxAttempts, limit int) ([]domain.WebhookEvent, error)
}

// Reprocessor feeds the worker pool from two sources: rows left
// unprocessed by a crash (scanned once at startup) and the redis retry
// queue populated by the dispatcher's backoff scheduling.
type Reprocessor struct {
	events       EventSource
	client       *redis.Client
	pool         *Pool
	logger       *slog.Logger
	maxAttempts  int
	pollInterval time.Duration
	batchSize    int64
}

func NewReprocessor(events EventSource, client *redis.Client, pool *Pool, maxAttempts int, logger *slog.Logger) *Reprocessor {
	return &Reprocessor{
		events:       events,
		client:       client,
		pool:         pool,
		logger:       logger,
		maxAttempts:  maxAttempts,
		pollInterval: 100 * time.Millisecond,
		batchSize:    10,
	}
}

// Start recovers stranded events, then polls the retry queue until the
// context is cancelled.
func (r *Reprocessor) Start(ctx context.Context) {
	r.recover(ctx)

	r.logger.Info("reprocessor started")
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reprocessor stopping")
			return
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

// recover resubmits events that were durably stored but never finished,
// so a crash between receipt and handling loses nothing.
func (r *Reprocessor) recover(ctx context.Context) {
	const recoverBatch = 500

	events, err := r.events.ListUnprocessed(ctx, r.maxAttempts, recoverBatch)
	if err != nil {
		r.logger.Error("failed to scan unprocessed events", "error", err)
		return
	}
	if len(events) == 0 {
		return
	}

	r.logger.Info("recovering unprocessed events", "count", len(events))
	for _, ev := range events {
		// Drop any stale queue entry; the event is going straight to the pool.
		r.client.ZRem(ctx, RetryQueueKey, ev.EventID)
		r.pool.Submit(ev)
	}
}

// poll claims due entries from the retry queue and resubmits them. The
// ZRem claim makes each entry go to exactly one reprocessor instance.
func (r *Reprocessor) poll(ctx context.Context) {
	now := float64(time.Now().UnixMicro())

	entries, err := r.client.ZRangeByScore(ctx, RetryQueueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(now, 'f', -1, 64),
		Count: r.batchSize,
	}).Result()
	if err != nil {
		r.logger.Error("failed to poll retry queue", "error", err)
		return
	}

	for _, eventID := range entries {
		removed, err := r.client.ZRem(ctx, RetryQueueKey, eventID).Result()
		if err != nil {
			r.logger.Error("failed to claim retry entry", "error", err)
			continue
		}
		if removed == 0 {
			// Another instance claimed it first.
			continue
		}

		ev, err := r.events.GetEvent(ctx, eventID)
		if err != nil {
			r.logger.Error("failed to load event for retry", "event_id", eventID, "error", err)
			continue
		}
		if ev == nil || ev.Processed {
			continue
		}

		r.pool.Submit(*ev)
	}
}

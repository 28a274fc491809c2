package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RetryQueueKey is the sorted set of event IDs awaiting another
// processing attempt, scored by their due time in microseconds.
const RetryQueueKey = "event_retry_queue"

// RetryScheduler implements the dispatcher's backoff scheduling on a
// redis sorted set. Delay doubles with every attempt.
type RetryScheduler struct {
	client    *redis.Client
	baseDelay time.Duration
	logger    *slog.Logger
}

func NewRetryScheduler(client *redis.Client, baseDelay time.Duration, logger *slog.Logger) *RetryScheduler {
	return &RetryScheduler{
		client:    client,
		baseDelay: baseDelay,
		logger:    logger,
	}
}

// Schedule queues an event for reprocessing after base*2^(attempt-1).
func (s *RetryScheduler) Schedule(ctx context.Context, eventID string, attempt int) error {
	due := time.Now().Add(s.delay(attempt))
	err := s.client.ZAdd(ctx, RetryQueueKey, redis.Z{
		Score:  float64(due.UnixMicro()),
		Member: eventID,
	}).Err()
	if err != nil {
		return fmt.Errorf("scheduling event retry: %w", err)
	}

	s.logger.Info("event retry scheduled",
		"event_id", eventID,
		"attempt", attempt,
		"due", due,
	)
	return nil
}

func (s *RetryScheduler) delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// Cap the exponent so pathological attempt counts cannot overflow.
	if attempt > 10 {
		attempt = 10
	}
	return s.baseDelay << (attempt - 1)
}

// Package dispatch routes stored webhook events to the handler registered
// for their type and records the processing outcome in the event log.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/recruitflow/unipile-sync/internal/domain"
)

// EventStore is the slice of the event log the dispatcher writes to.
type EventStore interface {
	MarkProcessed(ctx context.Context, eventID, note string) error
	MarkFailed(ctx context.Context, eventID, errMsg string) (int, error)
}

// RetryScheduler queues an event for another processing attempt after a
// backoff delay derived from the attempt number.
type RetryScheduler interface {
	Schedule(ctx context.Context, eventID string, attempt int) error
}

// Handler applies one event's effect to local state. Implementations must
// be idempotent: dedup by event ID is only a guard, and a handler can be
// re-invoked after a crash between effect commit and mark-processed.
type Handler interface {
	Apply(ctx context.Context, ev domain.WebhookEvent) error
}

// Dispatcher looks up the handler for an event's type and applies it.
// Unknown types are recorded, never dropped and never fatal.
type Dispatcher struct {
	events      EventStore
	scheduler   RetryScheduler
	handlers    map[domain.EventType]Handler
	maxAttempts int
	logger      *slog.Logger
}

func NewDispatcher(events EventStore, scheduler RetryScheduler, handlers map[domain.EventType]Handler, maxAttempts int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		events:      events,
		scheduler:   scheduler,
		handlers:    handlers,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Dispatch runs the handler for a stored event and updates the row with
// the outcome. Transient handler failures are rescheduled with backoff
// until the attempt budget runs out; validation and permanent failures
// are terminal immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.WebhookEvent) error {
	h, ok := d.handlers[ev.EventType]
	if !ok {
		d.logger.Warn("no handler for event type",
			"event_id", ev.EventID,
			"event_type", ev.EventType,
		)
		return d.events.MarkProcessed(ctx, ev.EventID, fmt.Sprintf("unhandled event type: %s", ev.EventType))
	}

	err := h.Apply(ctx, ev)
	if err == nil {
		return d.events.MarkProcessed(ctx, ev.EventID, "")
	}

	var validation *domain.ValidationError
	var permanent *domain.PermanentError
	if errors.As(err, &validation) || errors.As(err, &permanent) {
		d.logger.Error("event failed terminally",
			"event_id", ev.EventID,
			"event_type", ev.EventType,
			"error", err,
		)
		return d.events.MarkProcessed(ctx, ev.EventID, err.Error())
	}

	attempts, markErr := d.events.MarkFailed(ctx, ev.EventID, err.Error())
	if markErr != nil {
		return markErr
	}

	if attempts >= d.maxAttempts {
		d.logger.Error("event retries exhausted",
			"event_id", ev.EventID,
			"event_type", ev.EventType,
			"attempts", attempts,
			"error", err,
		)
		return nil
	}

	d.logger.Warn("event failed, scheduling retry",
		"event_id", ev.EventID,
		"event_type", ev.EventType,
		"attempt", attempts,
		"error", err,
	)
	return d.scheduler.Schedule(ctx, ev.EventID, attempts)
}

// Package worker runs webhook event processing off the request path: a
// fixed goroutine pool drains stored events through the dispatcher, and a
// reprocessor feeds it scheduled retries and crash-recovered rows.
package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/recruitflow/unipile-sync/internal/domain"
)

// Processor consumes one stored event. In production this is the
// dispatcher.
type Processor interface {
	Dispatch(ctx context.Context, ev domain.WebhookEvent) error
}

// Pool manages a fixed number of goroutines that process stored events.
type Pool struct {
	numWorkers int
	jobs       chan domain.WebhookEvent
	processor  Processor
	logger     *slog.Logger
	wg         sync.WaitGroup
}

func NewPool(numWorkers int, processor Processor, logger *slog.Logger) *Pool {
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan domain.WebhookEvent, numWorkers*2),
		processor:  processor,
		logger:     logger,
	}
}

// Start launches the workers. They read from the jobs channel until it is
// closed or the context is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.logger.Info("worker pool started", "num_workers", p.numWorkers)
}

// Submit hands an event to the pool. Blocks when the buffer is full,
// which backpressures the intake path.
func (p *Pool) Submit(ev domain.WebhookEvent) {
	p.jobs <- ev
}

// Stop closes the jobs channel and waits for all workers to drain.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for ev := range p.jobs {
		select {
		case <-ctx.Done():
			return
		default:
			if err := p.processor.Dispatch(ctx, ev); err != nil {
				p.logger.Error("dispatch failed",
					"event_id", ev.EventID,
					"event_type", ev.EventType,
					"error", err,
				)
			}
		}
	}
}

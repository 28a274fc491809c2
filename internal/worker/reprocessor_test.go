package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/recruitflow/unipile-sync/internal/domain"
)

// recordingProcessor collects dispatched events and closes done once the
// expected count has arrived.
type recordingProcessor struct {
	mu     sync.Mutex
	events []domain.WebhookEvent
	expect int
	done   chan struct{}
}

func newRecordingProcessor(expect int) *recordingProcessor {
	p := &recordingProcessor{expect: expect, done: make(chan struct{})}
	if expect == 0 {
		close(p.done)
	}
	return p
}

func (p *recordingProcessor) Dispatch(_ context.Context, ev domain.WebhookEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	if len(p.events) == p.expect {
		close(p.done)
	}
	return nil
}

func (p *recordingProcessor) dispatched() []domain.WebhookEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.WebhookEvent(nil), p.events...)
}

type fakeEventSource struct {
	mu          sync.Mutex
	events      map[string]*domain.WebhookEvent
	unprocessed []domain.WebhookEvent
}

func (f *fakeEventSource) GetEvent(_ context.Context, eventID string) (*domain.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[eventID]
	if !ok {
		return nil, nil
	}
	cp := *ev
	return &cp, nil
}

func (f *fakeEventSource) ListUnprocessed(_ context.Context, _, _ int) ([]domain.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unprocessed, nil
}

func TestPool_ProcessesSubmittedEvents(t *testing.T) {
	proc := newRecordingProcessor(3)
	pool := NewPool(2, proc, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	for _, id := range []string{"e1", "e2", "e3"} {
		pool.Submit(domain.WebhookEvent{EventID: id, EventType: domain.EventMessageSent})
	}

	select {
	case <-proc.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the pool to drain")
	}
	pool.Stop()

	if got := len(proc.dispatched()); got != 3 {
		t.Errorf("dispatched %d events, want 3", got)
	}
}

func TestReprocessor_PollClaimsDueEntries(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()

	source := &fakeEventSource{events: map[string]*domain.WebhookEvent{
		"evt_due":  {EventID: "evt_due", EventType: domain.EventEmailOpened},
		"evt_done": {EventID: "evt_done", EventType: domain.EventEmailOpened, Processed: true},
	}}

	past := float64(time.Now().Add(-time.Second).UnixMicro())
	future := float64(time.Now().Add(time.Hour).UnixMicro())
	client.ZAdd(ctx, RetryQueueKey, redis.Z{Score: past, Member: "evt_due"})
	client.ZAdd(ctx, RetryQueueKey, redis.Z{Score: past, Member: "evt_done"})
	client.ZAdd(ctx, RetryQueueKey, redis.Z{Score: future, Member: "evt_later"})

	proc := newRecordingProcessor(1)
	pool := NewPool(1, proc, testLogger())
	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pool.Start(poolCtx)

	r := NewReprocessor(source, client, pool, 5, testLogger())
	r.poll(ctx)

	select {
	case <-proc.done:
	case <-time.After(2 * time.Second):
		t.Fatal("due event never reached the pool")
	}
	pool.Stop()

	got := proc.dispatched()
	if len(got) != 1 || got[0].EventID != "evt_due" {
		t.Fatalf("dispatched %v, want only evt_due", got)
	}

	// Claimed entries are gone; the future one stays queued.
	remaining, err := client.ZRange(ctx, RetryQueueKey, 0, -1).Result()
	if err != nil {
		t.Fatalf("ZRange: %v", err)
	}
	if len(remaining) != 1 || remaining[0] != "evt_later" {
		t.Errorf("queue = %v, want only evt_later", remaining)
	}
}

func TestReprocessor_StartReturnsOnCancel(t *testing.T) {
	client := testRedis(t)
	source := &fakeEventSource{events: map[string]*domain.WebhookEvent{}}

	proc := newRecordingProcessor(0)
	pool := NewPool(1, proc, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	r := NewReprocessor(source, client, pool, 5, testLogger())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	// Let the poll loop spin at least once before shutting down.
	time.Sleep(150 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancellation")
	}

	// Only once Start has returned can no further Submit race the close.
	pool.Stop()
}

func TestReprocessor_RecoverResubmitsStrandedEvents(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()

	stranded := domain.WebhookEvent{EventID: "evt_stranded", EventType: domain.EventMessageSent}
	source := &fakeEventSource{
		events:      map[string]*domain.WebhookEvent{"evt_stranded": &stranded},
		unprocessed: []domain.WebhookEvent{stranded},
	}

	// A stale queue entry for the same event must not double-submit later.
	client.ZAdd(ctx, RetryQueueKey, redis.Z{
		Score:  float64(time.Now().Add(-time.Second).UnixMicro()),
		Member: "evt_stranded",
	})

	proc := newRecordingProcessor(1)
	pool := NewPool(1, proc, testLogger())
	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pool.Start(poolCtx)

	r := NewReprocessor(source, client, pool, 5, testLogger())
	r.recover(ctx)

	select {
	case <-proc.done:
	case <-time.After(2 * time.Second):
		t.Fatal("stranded event never reached the pool")
	}

	r.poll(ctx)
	pool.Stop()

	got := proc.dispatched()
	if len(got) != 1 || got[0].EventID != "evt_stranded" {
		t.Fatalf("dispatched %v, want evt_stranded exactly once", got)
	}
}

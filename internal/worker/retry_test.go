package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRetryScheduler_DelayDoubles(t *testing.T) {
	s := NewRetryScheduler(nil, 2*time.Second, testLogger())

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: 2 * time.Second},
		{attempt: 2, want: 4 * time.Second},
		{attempt: 3, want: 8 * time.Second},
		{attempt: 5, want: 32 * time.Second},
		// Out-of-range attempts are clamped.
		{attempt: 0, want: 2 * time.Second},
		{attempt: -3, want: 2 * time.Second},
		{attempt: 50, want: 2 * time.Second << 9},
	}

	for _, tt := range tests {
		if got := s.delay(tt.attempt); got != tt.want {
			t.Errorf("delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryScheduler_QueuesWithDueTime(t *testing.T) {
	client := testRedis(t)
	s := NewRetryScheduler(client, 2*time.Second, testLogger())
	ctx := context.Background()

	before := time.Now()
	if err := s.Schedule(ctx, "evt_1", 2); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	score, err := client.ZScore(ctx, RetryQueueKey, "evt_1").Result()
	if err != nil {
		t.Fatalf("ZScore: %v", err)
	}

	due := time.UnixMicro(int64(score))
	wantMin := before.Add(4 * time.Second)
	wantMax := time.Now().Add(4 * time.Second)
	if due.Before(wantMin) || due.After(wantMax) {
		t.Errorf("due = %v, want within [%v, %v]", due, wantMin, wantMax)
	}
}

func TestRetryScheduler_ReschedulingReplacesEntry(t *testing.T) {
	client := testRedis(t)
	s := NewRetryScheduler(client, time.Second, testLogger())
	ctx := context.Background()

	if err := s.Schedule(ctx, "evt_1", 1); err != nil {
		t.Fatalf("Schedule attempt 1: %v", err)
	}
	if err := s.Schedule(ctx, "evt_1", 2); err != nil {
		t.Fatalf("Schedule attempt 2: %v", err)
	}

	n, err := client.ZCard(ctx, RetryQueueKey).Result()
	if err != nil {
		t.Fatalf("ZCard: %v", err)
	}
	if n != 1 {
		t.Errorf("queue holds %d entries for one event, want 1", n)
	}
}

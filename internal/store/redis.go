package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore holds the short-lived coordination state that does not belong
// in the audit tables: the per-job create lock, the publish-attempted flag
// and the event retry queue (owned by the worker package).
type RedisStore struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisFromClient wraps an existing client. Tests use it with miniredis.
func NewRedisFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// createLockTTL bounds how long a crashed create can hold its lock.
const createLockTTL = 2 * time.Minute

func createLockKey(jobID string) string {
	return fmt.Sprintf("job:create-lock:%s", jobID)
}

func publishAttemptKey(jobID string) string {
	return fmt.Sprintf("job:publish-attempt:%s", jobID)
}

// AcquireCreateLock claims the single in-flight create slot for a job.
// Returns false when another create already holds it; the external system
// has no way to cancel a duplicate create, so the loser must give up.
func (s *RedisStore) AcquireCreateLock(ctx context.Context, jobID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, createLockKey(jobID), "1", createLockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring create lock: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) ReleaseCreateLock(ctx context.Context, jobID string) error {
	if err := s.client.Del(ctx, createLockKey(jobID)).Err(); err != nil {
		return fmt.Errorf("releasing create lock: %w", err)
	}
	return nil
}

// SetPublishAttempted is written before the publish call goes out. If the
// process dies mid-call the surviving flag marks the outcome as ambiguous,
// so a restart cannot blindly publish again.
func (s *RedisStore) SetPublishAttempted(ctx context.Context, jobID string) error {
	if err := s.client.Set(ctx, publishAttemptKey(jobID), "1", 0).Err(); err != nil {
		return fmt.Errorf("setting publish-attempt flag: %w", err)
	}
	return nil
}

func (s *RedisStore) PublishAttempted(ctx context.Context, jobID string) (bool, error) {
	n, err := s.client.Exists(ctx, publishAttemptKey(jobID)).Result()
	if err != nil {
		return false, fmt.Errorf("checking publish-attempt flag: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) ClearPublishAttempted(ctx context.Context, jobID string) error {
	if err := s.client.Del(ctx, publishAttemptKey(jobID)).Err(); err != nil {
		return fmt.Errorf("clearing publish-attempt flag: %w", err)
	}
	return nil
}

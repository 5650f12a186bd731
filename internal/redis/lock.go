package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("schedule lock not acquired")
	// ErrLockUnavailable means Redis could not be reached to take a lock.
	ErrLockUnavailable = errors.New("schedule lock store unavailable")
)

// Locker guards a reservation's critical section across API replicas. Keys
// are ledger dimensions such as "staff:<uuid>" or "resource:<uuid>".
type Locker interface {
	WithLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

type redisScheduleLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisScheduleLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisScheduleLocker{
		client: client,
		ttl:    ttl,
	}
}

// WithLocks takes every key in sorted order, runs fn, then releases them.
// If any key is held elsewhere the ones already taken are released and
// ErrLockNotAcquired is returned; if Redis fails, ErrLockUnavailable.
func (l *redisScheduleLocker) WithLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	keys = lockKeys(keys)
	token := uuid.NewString()

	held := make([]string, 0, len(keys))
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			_ = l.release(context.WithoutCancel(ctx), held[i], token)
		}
	}()

	for _, key := range keys {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("%w: acquire %s: %w", ErrLockUnavailable, key, err)
		}
		if !ok {
			return ErrLockNotAcquired
		}
		held = append(held, key)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func lockKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, "lock:schedule:"+k)
	}
	sort.Strings(out)
	return out
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisScheduleLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release schedule lock: %w", err)
	}
	return nil
}

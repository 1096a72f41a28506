package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

const lockKeyPrefix = "lock:otp:"

// RedisLocker is a lease-based lock shared by every replica that talks to
// the same Redis. The lease must outlive the longest critical section,
// including the notifier deadline.
type RedisLocker struct {
	client redis.UniversalClient
	lease  time.Duration
	retry  time.Duration
	logger *zap.Logger
}

// NewRedisLocker creates a RedisLocker. lease bounds how long a crashed
// holder can block a key.
func NewRedisLocker(client redis.UniversalClient, lease time.Duration, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{client: client, lease: lease, retry: 25 * time.Millisecond, logger: logger}
}

// Lock polls SET NX until the key is held or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	redisKey := lockKeyPrefix + key

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.lease).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockNotAcquired, ctx.Err())
		case <-time.After(l.retry):
		}
	}

	return func() {
		// Release must run even when the request context is gone.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseLockScript.Run(rctx, l.client, []string{redisKey}, token).Err(); err != nil {
			l.logger.Warn("release otp lock", zap.Error(err))
		}
	}, nil
}

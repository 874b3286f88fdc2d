package locking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	defaultLockTTL       = 10 * time.Second
	defaultRetryInterval = 25 * time.Millisecond
	lockKeyPrefix        = "venuebook:lock:"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another holder is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX on a shared Redis.
type RedisLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	logger        *slog.Logger
}

// RedisOption configures a RedisLocker.
type RedisOption func(*RedisLocker)

// WithTTL bounds how long a crashed holder can block a venue.
func WithTTL(ttl time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithRetryInterval sets the polling interval while waiting for a lock.
func WithRetryInterval(interval time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if interval > 0 {
			l.retryInterval = interval
		}
	}
}

// NewRedisLocker wraps client.
func NewRedisLocker(client *redis.Client, logger *slog.Logger, opts ...RedisOption) *RedisLocker {
	if logger == nil {
		logger = slog.Default()
	}
	locker := &RedisLocker{
		client:        client,
		ttl:           defaultLockTTL,
		retryInterval: defaultRetryInterval,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(locker)
	}
	return locker
}

// Lock polls until the key is acquired or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	redisKey := lockKeyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("locking: acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// The caller's context may already be cancelled; release regardless.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Warn("failed to release venue lock", "key", key, "error", err)
		}
	}, nil
}

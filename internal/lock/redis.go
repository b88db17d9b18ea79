// Package lock provides a Redis-backed per-audit lock. The lock only keeps concurrent scans of
// one audit from queueing on database row locks; correctness never depends on it.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

const (
	retryInterval = 50 * time.Millisecond
	maxRetries    = 20
)

// RedisLocker implements audit.Locker with redislock.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Connect opens a Redis client at addr and pings it.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
		PoolSize:    20,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{client: redislock.New(rdb), ttl: ttl, logger: logger}
}

// Lock obtains key, retrying briefly while another holder has it. The returned unlock releases
// the lock and logs, but does not return, release failures.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lk, err := l.client.Obtain(ctx, "lock:"+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(retryInterval), maxRetries),
	})
	if err != nil {
		return nil, err
	}
	return func() {
		// The request context may already be done; release on a fresh one.
		rctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := lk.Release(rctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("failed to release redis lock", "key", key, "error", err)
		}
	}, nil
}

package locking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLockOptions tunes the distributed lock
type RedisLockOptions struct {
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

// DefaultRedisLockOptions suits a single allocation: a handful of queries
// inside one transaction.
func DefaultRedisLockOptions() RedisLockOptions {
	return RedisLockOptions{
		Expiry:     30 * time.Second,
		Tries:      20,
		RetryDelay: 250 * time.Millisecond,
	}
}

// RedisLocker is a Locker shared by every process pointed at the same Redis
type RedisLocker struct {
	rs     *redsync.Redsync
	opts   RedisLockOptions
	logger *zap.Logger
}

var _ Locker = (*RedisLocker)(nil)

// NewRedisLocker builds a locker on an existing go-redis client
func NewRedisLocker(client goredislib.UniversalClient, opts RedisLockOptions, logger *zap.Logger) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	if opts.Expiry <= 0 || opts.Tries <= 0 || opts.RetryDelay < 0 {
		return nil, fmt.Errorf("invalid lock options: expiry=%s tries=%d retry_delay=%s", opts.Expiry, opts.Tries, opts.RetryDelay)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		opts:   opts,
		logger: logger,
	}, nil
}

// WithLock acquires the distributed mutex for key, runs fn and releases it.
// Errors from fn are returned unwrapped so callers can inspect them.
func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}

	mutex := l.rs.NewMutex(key,
		redsync.WithExpiry(l.opts.Expiry),
		redsync.WithTries(l.opts.Tries),
		redsync.WithRetryDelay(l.opts.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}
	l.logger.Debug("lock acquired", zap.String("lock_key", key))

	defer func() {
		// Release even when ctx was cancelled while fn ran.
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(unlockCtx); !ok || err != nil {
			l.logger.Error("failed to release lock",
				zap.String("lock_key", key),
				zap.Bool("unlock_ok", ok),
				zap.Error(err))
		}
	}()

	return fn(ctx)
}

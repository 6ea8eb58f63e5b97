package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockNotAcquired is returned when a lock cannot be acquired
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrLockNotHeld is returned when trying to release a lock not held
	ErrLockNotHeld = errors.New("lock not held")
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

type lock struct {
	client *Client
	key    string
	token  string
}

// Locker serialises record creation across service replicas.
type Locker struct {
	client    *Client
	keyPrefix string
	wait      time.Duration
}

// NewLocker creates a Locker. wait bounds how long WithLock retries a held lock.
func NewLocker(client *Client, keyPrefix string, wait time.Duration) *Locker {
	if keyPrefix == "" {
		keyPrefix = "fern:lock:"
	}
	return &Locker{
		client:    client,
		keyPrefix: keyPrefix,
		wait:      wait,
	}
}

func (l *Locker) acquire(ctx context.Context, key string, ttl time.Duration) (*lock, error) {
	lockKey := l.keyPrefix + key
	token := uuid.NewString()

	ok, err := l.client.rdb.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	l.client.logger.WithContext(ctx).Debugf("Acquired lock: %s", lockKey)
	return &lock{client: l.client, key: lockKey, token: token}, nil
}

func (l *Locker) tryAcquire(ctx context.Context, key string, ttl time.Duration) (*lock, error) {
	deadline := time.Now().Add(l.wait)
	backoff := 10 * time.Millisecond

	for {
		lk, err := l.acquire(ctx, key, ttl)
		if err == nil || !errors.Is(err, ErrLockNotAcquired) {
			return lk, err
		}
		if !time.Now().Before(deadline) {
			return nil, ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff = min(backoff*2, 500*time.Millisecond)
		}
	}
}

func (lk *lock) release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, lk.client.rdb, []string{lk.key}, lk.token).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}

	lk.client.logger.WithContext(ctx).Debugf("Released lock: %s", lk.key)
	return nil
}

// WithLock runs fn while holding the lock for key.
func (l *Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	lk, err := l.tryAcquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer func() {
		if err := lk.release(ctx); err != nil {
			l.client.logger.WithContext(ctx).WithError(err).Warnf("Failed to release lock %s", lk.key)
		}
	}()

	return fn()
}

package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
)

const lockKeyPrefix = "lock:product:"

// releaseScript deletes the lock only when the stored token matches, so an
// expired lock reacquired by another holder is never released by the first.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// ProductLock serializes bid acceptance per product across instances using a
// redis SET NX lease.
type ProductLock struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	logger *zap.Logger
}

// NewProductLock creates a distributed per-product lock. ttl bounds how long
// a crashed holder can block others; wait bounds how long an acquirer spins.
func NewProductLock(client *redis.Client, ttl, wait time.Duration, logger *zap.Logger) *ProductLock {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &ProductLock{client: client, ttl: ttl, wait: wait, logger: logger}
}

// WithLock runs fn while holding the product's lock.
func (l *ProductLock) WithLock(ctx context.Context, productID uuid.UUID, fn func(ctx context.Context) error) error {
	key := lockKeyPrefix + productID.String()
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}
	defer l.release(key, token)

	return fn(ctx)
}

func (l *ProductLock) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return errors.NewInternalError("failed to acquire product lock").WithCause(err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.NewConflictError("product is locked by another bid, retry")
		}

		select {
		case <-ctx.Done():
			return errors.NewInternalError("lock wait interrupted").WithCause(ctx.Err())
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (l *ProductLock) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
		// The lease expires on its own; losing the early release only
		// delays the next acquirer.
		l.logger.Warn("failed to release product lock",
			zap.String("key", key),
			zap.Error(err))
	}
}

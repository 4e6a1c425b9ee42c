package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davidleathers/meetpoint-market-backend/internal/domain/errors"
)

func newTestLock(t *testing.T, wait time.Duration) (*ProductLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewProductLock(client, 10*time.Second, wait, zap.NewNop()), mr
}

func TestProductLock_SerializesCriticalSection(t *testing.T) {
	lock, _ := newTestLock(t, 5*time.Second)
	productID := uuid.New()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
	)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := lock.WithLock(ctx, productID, func(context.Context) error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen, "critical section held by one goroutine at a time")
}

func TestProductLock_WaitTimeout(t *testing.T) {
	lock, mr := newTestLock(t, 100*time.Millisecond)
	productID := uuid.New()
	ctx := context.Background()

	// Simulate another instance holding the lock.
	require.NoError(t, mr.Set(lockKeyPrefix+productID.String(), "other-holder"))

	err := lock.WithLock(ctx, productID, func(context.Context) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))
}

func TestProductLock_ReleaseIsTokenGuarded(t *testing.T) {
	lock, mr := newTestLock(t, time.Second)
	productID := uuid.New()
	ctx := context.Background()
	key := lockKeyPrefix + productID.String()

	err := lock.WithLock(ctx, productID, func(context.Context) error {
		// The lease expires mid-section and another holder takes over.
		mr.Set(key, "other-holder")
		return nil
	})
	require.NoError(t, err)

	// The release must not have removed the other holder's lock.
	val, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "other-holder", val)
}

func TestProductLock_IndependentProducts(t *testing.T) {
	lock, _ := newTestLock(t, 100*time.Millisecond)
	ctx := context.Background()

	done := make(chan struct{})
	err := lock.WithLock(ctx, uuid.New(), func(context.Context) error {
		// A different product's lock is acquirable while this one is held.
		return lock.WithLock(ctx, uuid.New(), func(context.Context) error {
			close(done)
			return nil
		})
	})
	require.NoError(t, err)
	<-done
}

package lock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSerializesSameKey(t *testing.T) {
	l := NewLocal(time.Second)
	ctx := context.Background()

	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "fighter-1")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen)
	assert.Equal(t, 0, l.held())
}

func TestLocalDifferentKeysDoNotContend(t *testing.T) {
	l := NewLocal(50 * time.Millisecond)
	ctx := context.Background()

	releaseA, err := l.Acquire(ctx, "a")
	require.NoError(t, err)
	defer releaseA()

	releaseB, err := l.Acquire(ctx, "b")
	require.NoError(t, err)
	releaseB()
}

func TestLocalBusyAfterWait(t *testing.T) {
	l := NewLocal(20 * time.Millisecond)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "a")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "a")
	assert.ErrorIs(t, err, ErrBusy)

	release()
	release() // second call is a no-op

	again, err := l.Acquire(ctx, "a")
	require.NoError(t, err)
	again()
	assert.Equal(t, 0, l.held())
}

func TestLocalHonoursContext(t *testing.T) {
	l := NewLocal(0)
	release, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisLock(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	l := NewRedis(client, time.Second, 50*time.Millisecond)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "test-fighter")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "test-fighter")
	assert.ErrorIs(t, err, ErrBusy)

	release()
	again, err := l.Acquire(ctx, "test-fighter")
	require.NoError(t, err)
	again()
}

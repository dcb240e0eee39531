package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseMutualExclusion(t *testing.T, l Locker) {
	t.Helper()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "position:1")
			if !assert.NoError(t, err) {
				return
			}
			defer release()
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestMemory_MutualExclusion(t *testing.T) {
	m := NewMemory()
	exerciseMutualExclusion(t, m)
	assert.Equal(t, 0, m.held())
}

func TestMemory_DistinctKeysDoNotBlock(t *testing.T) {
	m := NewMemory()
	r1, err := m.Acquire(context.Background(), "position:1")
	require.NoError(t, err)
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r2, err := m.Acquire(ctx, "position:2")
	require.NoError(t, err)
	r2()
}

func TestMemory_ContextCancelWhileWaiting(t *testing.T) {
	m := NewMemory()
	release, err := m.Acquire(context.Background(), "listing:1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, "listing:1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release()
	assert.Equal(t, 0, m.held())
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedis_MutualExclusion(t *testing.T) {
	_, rdb := setupRedis(t)
	exerciseMutualExclusion(t, &Redis{Client: rdb, RetryInterval: time.Millisecond})
}

func TestRedis_TimeoutWhileHeld(t *testing.T) {
	mr, rdb := setupRedis(t)
	l := &Redis{Client: rdb, TTL: time.Minute, RetryInterval: 5 * time.Millisecond, WaitTimeout: 30 * time.Millisecond}

	release, err := l.Acquire(context.Background(), "position:9")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:position:9"))

	_, err = l.Acquire(context.Background(), "position:9")
	assert.ErrorIs(t, err, ErrTimeout)

	release()
	assert.False(t, mr.Exists("lock:position:9"))
}

func TestRedis_ReleaseDoesNotStealForeignLock(t *testing.T) {
	mr, rdb := setupRedis(t)
	l := &Redis{Client: rdb, TTL: time.Second}

	release, err := l.Acquire(context.Background(), "position:3")
	require.NoError(t, err)

	// Simulate expiry followed by another holder taking the key.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("lock:position:3", "someone-else"))

	release()
	val, err := mr.Get("lock:position:3")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}

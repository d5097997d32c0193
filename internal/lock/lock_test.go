package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func assertMutualExclusion(t *testing.T, locker Locker) {
	t.Helper()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Lock(context.Background(), "paper-1")
			if err != nil {
				t.Error(err)
				return
			}
			current := atomic.AddInt32(&inside, 1)
			for {
				seen := atomic.LoadInt32(&maxInside)
				if current <= seen || atomic.CompareAndSwapInt32(&maxInside, seen, current) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), maxInside)
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	assertMutualExclusion(t, NewKeyedMutex())
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	m := NewKeyedMutex()

	releaseA, err := m.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	releaseB, err := m.Lock(ctx, "b")
	require.NoError(t, err)
	releaseB()
}

func TestKeyedMutexHonoursContextAndCleansUp(t *testing.T) {
	m := NewKeyedMutex()

	release, err := m.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, "a")
	require.ErrorIs(t, err, ErrNotAcquired)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release()

	m.mu.Lock()
	require.Empty(t, m.entries)
	m.mu.Unlock()
}

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

func TestRedisLeaseSerializesSameKey(t *testing.T) {
	_, client := newMiniredisClient(t)
	lease := NewRedisLease(client, RedisLeaseConfig{RetryBackoff: time.Millisecond, Logger: zerolog.Nop()})
	assertMutualExclusion(t, lease)
}

func TestRedisLeaseReleasesOnlyOwnToken(t *testing.T) {
	server, client := newMiniredisClient(t)
	lease := NewRedisLease(client, RedisLeaseConfig{Prefix: "test", RetryBackoff: time.Millisecond})

	release, err := lease.Lock(context.Background(), "paper-1")
	require.NoError(t, err)
	require.True(t, server.Exists("test:paper-1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = lease.Lock(ctx, "paper-1")
	require.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, server.Set("test:paper-1", "someone-else"))
	release()
	require.True(t, server.Exists("test:paper-1"), "foreign lease must survive release")
}

func TestRedisLeaseTransportErrorIsNotContention(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	server.Close()

	lease := NewRedisLease(client, RedisLeaseConfig{RetryBackoff: time.Millisecond})
	_, err = lease.Lock(context.Background(), "paper-1")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotAcquired)
}

func TestChainReleasesAcquiredLockersOnFailure(t *testing.T) {
	first := NewKeyedMutex()
	second := NewKeyedMutex()

	held, err := second.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer held()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = Chain{first, nil, second}.Lock(ctx, "k")
	require.ErrorIs(t, err, ErrNotAcquired)

	release, err := first.Lock(context.Background(), "k")
	require.NoError(t, err, "first locker must have been released")
	release()
}

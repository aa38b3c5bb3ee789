package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client, ttl), server
}

func TestLockers(t *testing.T) {
	redisLocker, _ := newRedisLocker(t, time.Minute)

	testCases := []struct {
		name   string
		locker Locker
	}{
		{name: "memory", locker: NewMemoryLocker()},
		{name: "redis", locker: redisLocker},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			key := FixturesKey(tc.name)

			release, err := tc.locker.TryLock(ctx, key)
			require.NoError(t, err)

			_, err = tc.locker.TryLock(ctx, key)
			assert.ErrorIs(t, err, ErrLocked)

			other, err := tc.locker.TryLock(ctx, FixturesKey("someone-else"))
			require.NoError(t, err)
			other()

			release()
			release()

			again, err := tc.locker.TryLock(ctx, key)
			require.NoError(t, err)
			again()
		})
	}
}

func TestRedisLockExpires(t *testing.T) {
	locker, server := newRedisLocker(t, time.Second)
	ctx := context.Background()

	stale, err := locker.TryLock(ctx, "fixtures:t1")
	require.NoError(t, err)

	server.FastForward(2 * time.Second)

	fresh, err := locker.TryLock(ctx, "fixtures:t1")
	require.NoError(t, err)

	// The expired holder must not release the new holder's lock.
	stale()
	_, err = locker.TryLock(ctx, "fixtures:t1")
	assert.ErrorIs(t, err, ErrLocked)

	fresh()
	assert.False(t, server.Exists("lock:fixtures:t1"))
}

func TestNewRedisClient(t *testing.T) {
	server := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+server.Addr()+"/0")
	require.NoError(t, err)
	client.Close()

	_, err = NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}

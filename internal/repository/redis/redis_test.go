package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	sharedOnce   sync.Once
	sharedClient *redis.Client
	sharedErr    error
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	sharedOnce.Do(func() {
		ctx := context.Background()
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "redis:7-alpine",
				ExposedPorts: []string{"6379/tcp"},
				WaitingFor:   wait.ForLog("Ready to accept connections"),
			},
			Started: true,
		})
		if err != nil {
			sharedErr = err
			return
		}
		endpoint, err := container.Endpoint(ctx, "")
		if err != nil {
			sharedErr = err
			return
		}
		sharedClient = redis.NewClient(&redis.Options{Addr: endpoint})
		sharedErr = sharedClient.Ping(ctx).Err()
	})

	if sharedErr != nil {
		t.Skipf("redis container unavailable: %v", sharedErr)
	}
	return sharedClient
}

func TestCacheRepository(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheRepository(testClient(t), time.Minute)

	_, gen, ok, err := cache.GetBalance(ctx, "cache-u1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, gen)

	stored, err := cache.SetBalance(ctx, "cache-u1", "1800.50", gen)
	require.NoError(t, err)
	assert.True(t, stored)
	stored, err = cache.SetBalance(ctx, "cache-u2", "20", 0)
	require.NoError(t, err)
	assert.True(t, stored)

	balance, _, ok, err := cache.GetBalance(ctx, "cache-u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1800.50", balance)

	require.NoError(t, cache.Invalidate(ctx, "cache-u1", "cache-u2"))
	_, gen, ok, err = cache.GetBalance(ctx, "cache-u2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), gen)

	assert.NoError(t, cache.Invalidate(ctx))
	assert.NoError(t, cache.Ping(ctx))
}

func TestCacheRepository_RejectsWriteFromOlderGeneration(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheRepository(testClient(t), time.Minute)

	_, seen, ok, err := cache.GetBalance(ctx, "cache-race")
	require.NoError(t, err)
	require.False(t, ok)

	// a writer commits and invalidates after the reader summed
	require.NoError(t, cache.Invalidate(ctx, "cache-race"))

	stored, err := cache.SetBalance(ctx, "cache-race", "100", seen)
	require.NoError(t, err)
	assert.False(t, stored)
	_, current, ok, err := cache.GetBalance(ctx, "cache-race")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, seen+1, current)

	stored, err = cache.SetBalance(ctx, "cache-race", "150", current)
	require.NoError(t, err)
	assert.True(t, stored)
	balance, _, ok, err := cache.GetBalance(ctx, "cache-race")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "150", balance)
}

func TestLockRepository_SerializesHolders(t *testing.T) {
	locker := NewLockRepository(testClient(t), LockConfig{TTL: 5 * time.Second, RetryDelay: 5 * time.Millisecond})
	var inside, overlaps int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			unlock, err := locker.Lock(ctx, "lock-u1")
			if !assert.NoError(t, err) {
				return
			}
			if atomic.AddInt32(&inside, 1) > 1 {
				atomic.AddInt32(&overlaps, 1)
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Zero(t, overlaps)
}

func TestLockRepository_TimesOutAndReleasesOnlyOwnToken(t *testing.T) {
	client := testClient(t)
	locker := NewLockRepository(client, LockConfig{TTL: 5 * time.Second, RetryDelay: 5 * time.Millisecond})

	unlock, err := locker.Lock(context.Background(), "lock-u2")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "lock-u2")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// a foreign token must survive our release
	require.NoError(t, client.Set(context.Background(), LockKeyPrefix+"lock-u3", "someone-else", time.Minute).Err())
	locker.release(LockKeyPrefix+"lock-u3", "not-mine")
	assert.Equal(t, "someone-else", client.Get(context.Background(), LockKeyPrefix+"lock-u3").Val())

	unlock()
	unlock, err = locker.Lock(context.Background(), "lock-u2")
	require.NoError(t, err)
	unlock()
}

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/pkg/logger"
	"github.com/alfanzaky/refledger/pkg/metrics"
	"github.com/alfanzaky/refledger/pkg/utils"
)

// releaseScript deletes the lock only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockConfig tunes the distributed user lock
type LockConfig struct {
	TTL        time.Duration
	RetryDelay time.Duration
}

type lockRepository struct {
	client *redis.Client
	cfg    LockConfig
}

var _ domain.UserLocker = (*lockRepository)(nil)

// NewLockRepository creates a per-user lock shared by every instance using client
func NewLockRepository(client *redis.Client, cfg LockConfig) *lockRepository {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 25 * time.Millisecond
	}
	return &lockRepository{client: client, cfg: cfg}
}

// Lock polls SET NX until it wins or ctx is done. The lock expires after
// TTL if the holder never releases it.
func (r *lockRepository) Lock(ctx context.Context, userID string) (func(), error) {
	key := LockKeyPrefix + userID
	token := utils.GenerateUUID()
	start := time.Now()

	ticker := time.NewTicker(r.cfg.RetryDelay)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.cfg.TTL).Result()
		if err != nil {
			metrics.RecordLockWait("redis", "error", time.Since(start).Seconds())
			return nil, fmt.Errorf("failed to acquire lock for %s: %w", userID, err)
		}
		if ok {
			metrics.RecordLockWait("redis", "acquired", time.Since(start).Seconds())
			return func() { r.release(key, token) }, nil
		}

		select {
		case <-ctx.Done():
			metrics.RecordLockWait("redis", "timeout", time.Since(start).Seconds())
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *lockRepository) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
		logger.Error("Failed to release user lock",
			logger.String("key", key),
			logger.ErrorField(err),
		)
	}
}

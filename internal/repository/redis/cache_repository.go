package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/pkg/logger"
	"github.com/alfanzaky/refledger/pkg/metrics"
)

// Cache keys
const (
	BalanceKeyPrefix    = "balance:"
	GenerationKeyPrefix = "balance:gen:"
	LockKeyPrefix       = "lock:user:"

	// TTL durations
	BalanceCacheTTL = 1 * time.Minute
	GenerationTTL   = 24 * time.Hour
)

// setBalanceScript writes the balance only while the generation key still
// holds the value the reader saw. A missing generation counts as 0.
var setBalanceScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[2]) or "0"
if gen ~= ARGV[2] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1
`)

type cacheRepository struct {
	client *redis.Client
	ttl    time.Duration
}

var _ domain.BalanceCache = (*cacheRepository)(nil)

// NewCacheRepository creates a new Redis balance cache
func NewCacheRepository(client *redis.Client, ttl time.Duration) *cacheRepository {
	if ttl <= 0 {
		ttl = BalanceCacheTTL
	}
	return &cacheRepository{client: client, ttl: ttl}
}

// GetBalance returns the cached ledger sum of userID and the current
// generation. ok is false on a cache miss.
func (r *cacheRepository) GetBalance(ctx context.Context, userID string) (string, int64, bool, error) {
	values, err := r.client.MGet(ctx, BalanceKeyPrefix+userID, GenerationKeyPrefix+userID).Result()
	if err != nil {
		metrics.RecordRedisOperation("get_balance", "error")
		logger.Error("Failed to get user balance from cache",
			logger.String("user_id", userID),
			logger.ErrorField(err),
		)
		return "", 0, false, fmt.Errorf("failed to get user balance from cache: %w", err)
	}

	var generation int64
	if raw, ok := values[1].(string); ok {
		generation, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			metrics.RecordRedisOperation("get_balance", "error")
			return "", 0, false, fmt.Errorf("invalid balance generation %q: %w", raw, err)
		}
	}

	balance, ok := values[0].(string)
	if !ok {
		metrics.RecordRedisOperation("get_balance", "miss")
		return "", generation, false, nil
	}

	metrics.RecordRedisOperation("get_balance", "hit")
	return balance, generation, true, nil
}

// SetBalance caches balance unless userID was invalidated after generation
// was read. The bool reports whether the value was stored.
func (r *cacheRepository) SetBalance(ctx context.Context, userID, balance string, generation int64) (bool, error) {
	keys := []string{BalanceKeyPrefix + userID, GenerationKeyPrefix + userID}
	stored, err := setBalanceScript.Run(ctx, r.client, keys,
		balance, strconv.FormatInt(generation, 10), r.ttl.Milliseconds(),
	).Int()
	if err != nil {
		metrics.RecordRedisOperation("set_balance", "error")
		logger.Error("Failed to cache user balance",
			logger.String("user_id", userID),
			logger.String("balance", balance),
			logger.ErrorField(err),
		)
		return false, fmt.Errorf("failed to cache user balance: %w", err)
	}

	if stored == 0 {
		metrics.RecordRedisOperation("set_balance", "stale")
		return false, nil
	}
	metrics.RecordRedisOperation("set_balance", "ok")
	return true, nil
}

// Invalidate drops the cached balances and bumps their generations
func (r *cacheRepository) Invalidate(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range userIDs {
			pipe.Incr(ctx, GenerationKeyPrefix+id)
			pipe.Expire(ctx, GenerationKeyPrefix+id, GenerationTTL)
			pipe.Del(ctx, BalanceKeyPrefix+id)
		}
		return nil
	})
	if err != nil {
		metrics.RecordRedisOperation("invalidate_balance", "error")
		return fmt.Errorf("failed to invalidate user balance cache: %w", err)
	}

	metrics.RecordRedisOperation("invalidate_balance", "ok")
	logger.Debug("Balance cache invalidated", logger.Int("users", len(userIDs)))
	return nil
}

// Ping checks the Redis connection
func (r *cacheRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

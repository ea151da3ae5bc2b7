package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"dispatch/internal/domain"
)

// PoolCacheTTL is used when no TTL is configured. Assignment keeps the
// listing short-lived.
const PoolCacheTTL = 2 * time.Second

const (
	poolCacheKey      = "cache:pool:available"
	poolGenerationKey = "cache:pool:generation"
)

// setIfGenerationScript writes the listing only while the generation key
// still holds ARGV[1]. A missing generation counts as 0.
var setIfGenerationScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1]) or "0"
if current ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// PoolCache caches the pool listing in Redis.
type PoolCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPoolCache creates a new PoolCache. ttl <= 0 uses PoolCacheTTL.
func NewPoolCache(client *redis.Client, ttl time.Duration) *PoolCache {
	if ttl <= 0 {
		ttl = PoolCacheTTL
	}
	return &PoolCache{client: client, ttl: ttl}
}

// GetAvailable retrieves the cached listing.
func (c *PoolCache) GetAvailable(ctx context.Context) ([]*domain.Order, bool, error) {
	data, err := c.client.Get(ctx, poolCacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil // Cache miss
		}
		return nil, false, err
	}

	var orders []*domain.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, false, err
	}
	return orders, true, nil
}

// Generation returns the invalidation counter.
func (c *PoolCache) Generation(ctx context.Context) (uint64, error) {
	gen, err := c.client.Get(ctx, poolGenerationKey).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// SetAvailable stores the listing unless it was invalidated after gen was read.
func (c *PoolCache) SetAvailable(ctx context.Context, orders []*domain.Order, gen uint64) error {
	if orders == nil {
		orders = []*domain.Order{}
	}
	data, err := json.Marshal(orders)
	if err != nil {
		return err
	}
	return setIfGenerationScript.Run(ctx, c.client,
		[]string{poolGenerationKey, poolCacheKey},
		strconv.FormatUint(gen, 10), data, c.ttl.Milliseconds(),
	).Err()
}

// InvalidateAvailable advances the generation and drops the cached listing.
func (c *PoolCache) InvalidateAvailable(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, poolGenerationKey)
		pipe.Del(ctx, poolCacheKey)
		return nil
	})
	return err
}

package screener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"confluence-screener/internal/signal"
)

// redisKeyPrefix namespaces screening results in a shared Redis
const redisKeyPrefix = "screener:result:"

// RedisCache stores screening results in Redis so multiple screener
// instances share one result set. When Redis is unreachable it degrades
// to cache misses instead of failing the request, mirroring the
// fallback discipline of the rest of the pipeline.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps an existing Redis client
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Get retrieves a cached signal from Redis
func (c *RedisCache) Get(key string) (signal.TradableSignal, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Str("key", key).Msg("redis cache get failed")
		}
		return signal.TradableSignal{}, false
	}

	var sig signal.TradableSignal
	if err := json.Unmarshal(data, &sig); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis cache entry corrupt, dropping")
		return signal.TradableSignal{}, false
	}
	return sig, true
}

// Set stores a signal in Redis with the cache TTL
func (c *RedisCache) Set(key string, sig signal.TradableSignal) {
	data, err := json.Marshal(sig)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to marshal signal for cache")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.client.Set(ctx, redisKeyPrefix+key, data, c.ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("redis cache set failed")
	}
}

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"social_automation/internal/metrics"
)

type RedisCache struct {
	c *redis.Client
}

func NewRedisCache(addr, password string, db int) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{c: rdb}
}

func (r *RedisCache) Close() error { return r.c.Close() }

const (
	opIncr   = "incr"
	opAppend = "append"
	opRange  = "range"
)

// IncrWithExpiry runs INCR and EXPIRE NX in one pipeline. EXPIRE NX only
// sets the TTL when the key has none, which is exactly the first INCR of a
// fresh window; later hits leave the original expiry alone.
func (r *RedisCache) IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	start := time.Now()
	metrics.IncRedisRequest(opIncr)
	defer func() { metrics.ObserveRedisDuration(opIncr, time.Since(start)) }()

	pipe := r.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.IncRedisError(opIncr)
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

// AppendBounded runs LPUSH and LTRIM in one pipeline, so the list can never
// be observed above capacity.
func (r *RedisCache) AppendBounded(ctx context.Context, key string, value []byte, capacity int64) error {
	if capacity <= 0 {
		capacity = 1
	}

	start := time.Now()
	metrics.IncRedisRequest(opAppend)
	defer func() { metrics.ObserveRedisDuration(opAppend, time.Since(start)) }()

	pipe := r.c.TxPipeline()
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, capacity-1)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.IncRedisError(opAppend)
		return fmt.Errorf("append %s: %w", key, err)
	}
	return nil
}

func (r *RedisCache) ListRange(ctx context.Context, key string, capacity int64) ([][]byte, error) {
	if capacity <= 0 {
		capacity = 1
	}

	start := time.Now()
	metrics.IncRedisRequest(opRange)
	defer func() { metrics.ObserveRedisDuration(opRange, time.Since(start)) }()

	vals, err := r.c.LRange(ctx, key, 0, capacity-1).Result()
	if err != nil {
		metrics.IncRedisError(opRange)
		return nil, fmt.Errorf("range %s: %w", key, err)
	}

	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		out = append(out, []byte(v))
	}
	return out, nil
}

func (r *RedisCache) RawClient() *redis.Client { return r.c }

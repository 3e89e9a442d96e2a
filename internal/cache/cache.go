package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"pyxgrid/internal/logger"
	"pyxgrid/internal/metrics"
)

// Cache：先查 LRU，再查 Redis；Redis 命中时回填 LRU
// 约束：rc 可为 nil；Redis 错误只记日志并按未命中处理
type Cache struct {
	lru    *LRU
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

func New(size int, ttl time.Duration, rc *redis.Client, prefix string) *Cache {
	return &Cache{lru: NewLRU(size, ttl), rc: rc, prefix: prefix, ttl: ttl}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := c.lru.Get(key); ok {
		metrics.CacheHitsTotal.WithLabelValues("memory").Inc()
		return v, true
	}
	if c.rc != nil {
		v, err := c.rc.Get(ctx, c.prefix+key).Bytes()
		switch {
		case err == nil:
			metrics.CacheHitsTotal.WithLabelValues("redis").Inc()
			c.lru.Set(key, v)
			return v, true
		case !errors.Is(err, redis.Nil):
			logger.L().Warn("cache_redis_get_error", "key", key, "err", err)
		}
	}
	metrics.CacheMissesTotal.Inc()
	return nil, false
}

func (c *Cache) Set(ctx context.Context, key string, v []byte) {
	c.lru.Set(key, v)
	if c.rc == nil {
		return
	}
	if err := c.rc.Set(ctx, c.prefix+key, v, c.ttl).Err(); err != nil {
		logger.L().Warn("cache_redis_set_error", "key", key, "err", err)
	}
}

// GetJSON：命中时解码到 dst；解码失败视为未命中
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) bool {
	b, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		c.lru.Delete(key)
		return false
	}
	return true
}

func (c *Cache) SetJSON(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.L().Warn("cache_encode_error", "key", key, "err", err)
		return
	}
	c.Set(ctx, key, b)
}

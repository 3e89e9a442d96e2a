package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pyxgrid/internal/config"
	"pyxgrid/internal/logger"
)

// OpenRedis：按配置创建客户端并 Ping
// 约束：未启用时返回 nil, nil；Ping 失败时关闭客户端并返回错误
func OpenRedis(ctx context.Context, c config.RedisConfig) (*redis.Client, error) {
	if !c.Enabled {
		return nil, nil
	}
	rc := redis.NewClient(&redis.Options{Addr: c.Addr(), Password: c.Password, DB: c.DB})
	logger.L().Debug("redis_config", "addr", c.Addr(), "db", c.DB)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("ping redis %s: %w", c.Addr(), err)
	}
	return rc, nil
}

// 包 utils：Postgres、Redis 连接与自签名证书
package utils

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"pyxgrid/internal/config"
)

// OpenPostgres：按配置打开连接池并做一次带超时的 Ping
// 约束：未启用时返回 nil, nil
func OpenPostgres(ctx context.Context, c config.PostgresConfig) (*sql.DB, error) {
	if !c.Enabled {
		return nil, nil
	}
	db, err := sql.Open("postgres", c.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxIdleConns)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres %s:%s: %w", c.Host, c.Port, err)
	}
	return db, nil
}

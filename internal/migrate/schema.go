// 包 migrate：首次运行时创建区域持久化所需的表
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"pyxgrid/internal/logger"
)

// Statements：按顺序执行；全部使用 IF NOT EXISTS，可重复执行
var Statements = []string{
	`CREATE TABLE IF NOT EXISTS grid_regions (
        name TEXT PRIMARY KEY,
        resolution INT NOT NULL CHECK (resolution BETWEEN 1 AND 40),
        mode TEXT NOT NULL,
        tile_count INT NOT NULL DEFAULT 0,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS grid_region_tiles (
        region TEXT NOT NULL REFERENCES grid_regions(name) ON DELETE CASCADE,
        chunk INT NOT NULL,
        roots TEXT[] NOT NULL,
        PRIMARY KEY (region, chunk)
    )`,
	`CREATE INDEX IF NOT EXISTS idx_grid_regions_created ON grid_regions(created_at DESC)`,
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, s := range Statements {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	logger.L().Debug("schema_done")
	return nil
}

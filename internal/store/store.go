// 包 store：PostgreSQL 上的区域（命名瓦片集合）持久化
// 约束：瓦片根以文本地址存入 TEXT[]，每行最多 chunkSize 个
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"pyxgrid/internal/index"
	"pyxgrid/internal/logger"
	"pyxgrid/internal/polygon"
)

const chunkSize = 1000

var (
	ErrRegionNotFound = errors.New("region not found")
	ErrEmptyRegion    = errors.New("empty region")
)

type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// RegionInfo：区域的元数据
type RegionInfo struct {
	Name       string    `json:"name"`
	Resolution int       `json:"resolution"`
	Mode       string    `json:"mode"`
	TileCount  int       `json:"tile_count"`
	CreatedAt  time.Time `json:"created_at"`
}

type Region struct {
	RegionInfo
	Tiles *polygon.TileCollection
}

// SaveRegion：同名区域整体替换
func (s *Store) SaveRegion(ctx context.Context, name, mode string, tc *polygon.TileCollection) error {
	if tc == nil || tc.IsEmpty() {
		return fmt.Errorf("save %q: %w", name, ErrEmptyRegion)
	}
	chunks := chunkRoots(encodeRoots(tc), chunkSize)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO grid_regions(name, resolution, mode, tile_count)
        VALUES($1,$2,$3,$4)
        ON CONFLICT (name) DO UPDATE SET resolution=EXCLUDED.resolution, mode=EXCLUDED.mode, tile_count=EXCLUDED.tile_count, created_at=now()`,
		name, tc.Resolution(), mode, tc.GeometryCount()); err != nil {
		return fmt.Errorf("save %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM grid_region_tiles WHERE region=$1`, name); err != nil {
		return fmt.Errorf("save %q: %w", name, err)
	}
	for i, c := range chunks {
		if _, err := tx.ExecContext(ctx, `INSERT INTO grid_region_tiles(region, chunk, roots) VALUES($1,$2,$3)`, name, i, pq.Array(c)); err != nil {
			return fmt.Errorf("save %q chunk %d: %w", name, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logger.L().Debug("region_saved", "name", name, "tiles", tc.GeometryCount(), "chunks", len(chunks))
	return nil
}

func (s *Store) LoadRegion(ctx context.Context, name string) (*Region, error) {
	var r Region
	row := s.db.QueryRowContext(ctx, `SELECT name, resolution, mode, tile_count, created_at FROM grid_regions WHERE name=$1`, name)
	if err := row.Scan(&r.Name, &r.Resolution, &r.Mode, &r.TileCount, &r.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%q: %w", name, ErrRegionNotFound)
		}
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT roots FROM grid_region_tiles WHERE region=$1 ORDER BY chunk`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roots []string
	for rows.Next() {
		var chunk []string
		if err := rows.Scan(pq.Array(&chunk)); err != nil {
			return nil, err
		}
		roots = append(roots, chunk...)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	tc, err := decodeRoots(r.Resolution, roots)
	if err != nil {
		return nil, fmt.Errorf("region %q: %w", name, err)
	}
	r.Tiles = tc
	return &r, nil
}

// ListRegions：按创建时间倒序
func (s *Store) ListRegions(ctx context.Context, limit int) ([]RegionInfo, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT name, resolution, mode, tile_count, created_at FROM grid_regions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RegionInfo
	for rows.Next() {
		var r RegionInfo
		if err := rows.Scan(&r.Name, &r.Resolution, &r.Mode, &r.TileCount, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) DeleteRegion(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM grid_regions WHERE name=$1`, name)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%q: %w", name, ErrRegionNotFound)
	}
	return nil
}

func encodeRoots(tc *polygon.TileCollection) []string {
	roots := tc.Roots()
	out := make([]string, len(roots))
	for i, r := range roots {
		out[i] = r.String()
	}
	return out
}

func decodeRoots(res int, roots []string) (*polygon.TileCollection, error) {
	tc := polygon.NewTileCollection()
	for _, s := range roots {
		a, err := index.Parse(s)
		if err != nil {
			return nil, err
		}
		if err := tc.AddTile(a, res); err != nil {
			return nil, err
		}
	}
	return tc, nil
}

func chunkRoots(roots []string, size int) [][]string {
	var out [][]string
	for len(roots) > size {
		out = append(out, roots[:size])
		roots = roots[size:]
	}
	if len(roots) > 0 {
		out = append(out, roots)
	}
	return out
}

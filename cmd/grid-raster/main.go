package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"pyxgrid/internal/config"
	"pyxgrid/internal/logger"
	"pyxgrid/internal/metrics"
	"pyxgrid/internal/migrate"
	"pyxgrid/internal/regions"
	"pyxgrid/internal/snyder"
	"pyxgrid/internal/store"
	"pyxgrid/internal/utils"
)

// 栅格化 GeoJSON 文件，把瓦片写到标准输出，可选存入 Postgres
// 背景：大区域离线预计算，避免在请求路径上做高分辨率栅格化
// 约束：RASTER_INPUT 为 "-" 时读标准输入；RASTER_REGION 非空时要求 PG_ENABLE=true
func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	cfg, err := config.FromEnv()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	input := os.Getenv("RASTER_INPUT")
	if input == "" {
		l.Error("raster_input_missing")
		os.Exit(1)
	}
	res := cfg.Grid.DefaultResolution
	if s := os.Getenv("RASTER_RESOLUTION"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			l.Error("raster_resolution_invalid", "value", s)
			os.Exit(1)
		}
		res = n
	}
	mode, err := regions.ParseMode(os.Getenv("RASTER_MODE"))
	if err != nil {
		l.Error("raster_mode_invalid", "err", err)
		os.Exit(1)
	}

	var body []byte
	if input == "-" {
		body, err = io.ReadAll(os.Stdin)
	} else {
		body, err = os.ReadFile(input)
	}
	if err != nil {
		l.Error("raster_read_error", "input", input, "err", err)
		os.Exit(1)
	}
	polys, err := regions.ParseGeoJSON(body)
	if err != nil {
		l.Error("raster_parse_error", "err", err)
		os.Exit(1)
	}
	vertexRes := cfg.Grid.VertexResolution
	if vertexRes < res {
		vertexRes = res
	}
	start := time.Now()
	tc, err := regions.Rasterize(polys, snyder.Instance(), vertexRes, res, mode)
	if err != nil {
		l.Error("rasterize_error", "err", err)
		os.Exit(1)
	}
	l.Info("rasterize_ok", "polygons", len(polys), "res", res, "mode", mode,
		"tiles", tc.GeometryCount(), "cells", tc.CellCount(), "ms", metrics.SinceMs(start))

	if os.Getenv("RASTER_FORMAT") == "geojson" {
		fc, err := regions.TilesToFeatureCollection(tc, snyder.Instance())
		if err == nil {
			err = json.NewEncoder(os.Stdout).Encode(fc)
		}
		if err != nil {
			l.Error("raster_write_error", "err", err)
			os.Exit(1)
		}
	} else if err := tc.WriteStream(os.Stdout); err != nil {
		l.Error("raster_write_error", "err", err)
		os.Exit(1)
	}

	name := os.Getenv("RASTER_REGION")
	if name == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	cfg.Postgres.Enabled = true
	db, err := utils.OpenPostgres(ctx, cfg.Postgres)
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := migrate.EnsureSchema(ctx, db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	if err := store.AttachDB(db).SaveRegion(ctx, name, string(mode), tc); err != nil {
		l.Error("region_save_error", "name", name, "err", err)
		os.Exit(1)
	}
	l.Info("region_saved", "name", name, "tiles", tc.GeometryCount())
}

package main

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"pyxgrid/internal/geo"
	"pyxgrid/internal/index"
	"pyxgrid/internal/logger"
	"pyxgrid/internal/snyder"
)

// 地址与经纬度互转
// 约束：给出 CELL_INDEX 时做反算；否则读取 CELL_LAT、CELL_LON、CELL_RES 做正算
func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	proj := snyder.Instance()
	enc := json.NewEncoder(os.Stdout)

	if s := os.Getenv("CELL_INDEX"); s != "" {
		a, err := index.Parse(s)
		if err != nil || a.IsNull() {
			l.Error("cell_index_invalid", "index", s, "err", err)
			os.Exit(1)
		}
		ll, err := proj.Inverse(a)
		converged := !errors.Is(err, snyder.ErrNotConverged)
		if err != nil && converged {
			l.Error("inverse_error", "index", s, "err", err)
			os.Exit(1)
		}
		area, _ := snyder.CellAreaOnReferenceSphere(a)
		_ = enc.Encode(map[string]any{
			"index":             a.String(),
			"resolution":        a.Resolution(),
			"pentagon":          a.IsPentagon(),
			"lat":               ll.LatDegrees(),
			"lon":               ll.LonDegrees(),
			"converged":         converged,
			"reference_area_m2": area,
		})
		return
	}

	lat, err1 := strconv.ParseFloat(os.Getenv("CELL_LAT"), 64)
	lon, err2 := strconv.ParseFloat(os.Getenv("CELL_LON"), 64)
	if err := errors.Join(err1, err2); err != nil {
		l.Error("cell_latlon_invalid", "err", err)
		os.Exit(1)
	}
	res := 10
	if s := os.Getenv("CELL_RES"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			l.Error("cell_res_invalid", "value", s)
			os.Exit(1)
		}
		res = n
	}
	a, err := proj.Forward(geo.FromDegrees(lat, lon), res)
	if err != nil {
		l.Error("forward_error", "lat", lat, "lon", lon, "res", res, "err", err)
		os.Exit(1)
	}
	_ = enc.Encode(map[string]any{"index": a.String(), "resolution": a.Resolution(), "pentagon": a.IsPentagon()})
}

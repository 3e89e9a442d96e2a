// 包 api：网格 HTTP 接口，由 BuildRoutes 组装，上层在 API_BASE 下挂载
// 约束：响应统一为 JSON 且不缓存；存储、GeoIP 缺席时相关接口返回 503
package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"hash/fnv"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"pyxgrid/internal/cache"
	"pyxgrid/internal/config"
	"pyxgrid/internal/geo"
	"pyxgrid/internal/geoip"
	"pyxgrid/internal/hittest"
	"pyxgrid/internal/index"
	"pyxgrid/internal/logger"
	"pyxgrid/internal/metrics"
	"pyxgrid/internal/polygon"
	"pyxgrid/internal/regions"
	"pyxgrid/internal/snyder"
	"pyxgrid/internal/store"
)

// maxBody：栅格化请求体上限
const maxBody = 8 << 20

// Deps：路由依赖；Store、GeoIP、Cache 可为 nil
type Deps struct {
	Proj  *snyder.Projector
	Store *store.Store
	GeoIP *geoip.Locator
	Cache *cache.Cache
	Grid  config.GridConfig
}

var errUnavailable = errors.New("backend unavailable")

// httpError：携带状态码的错误
type httpError struct {
	code int
	err  error
}

func (e *httpError) Error() string { return e.err.Error() }
func (e *httpError) Unwrap() error { return e.err }

func badRequest(err error) error { return &httpError{code: http.StatusBadRequest, err: err} }

// statusOf：哨兵错误 → HTTP 状态码
func statusOf(err error) int {
	var he *httpError
	switch {
	case errors.As(err, &he):
		return he.code
	case errors.Is(err, index.ErrIndexFormat),
		errors.Is(err, index.ErrIndexResolution),
		errors.Is(err, index.ErrIndexMath),
		errors.Is(err, snyder.ErrProjectionRange),
		errors.Is(err, polygon.ErrInvalidPolygon),
		errors.Is(err, polygon.ErrInvalidTile),
		errors.Is(err, polygon.ErrResolutionMismatch),
		errors.Is(err, regions.ErrBadGeoJSON),
		errors.Is(err, regions.ErrNoPolygon),
		errors.Is(err, regions.ErrBadMode),
		errors.Is(err, geoip.ErrBadIP),
		errors.Is(err, store.ErrEmptyRegion):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrRegionNotFound),
		errors.Is(err, geoip.ErrNoLocation):
		return http.StatusNotFound
	case errors.Is(err, errUnavailable),
		errors.Is(err, geoip.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle：统一的错误输出与请求计数
func handle(mux *http.ServeMux, route string, methods []string, fn handlerFunc) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		sw := &codeWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() { metrics.RequestsTotal.WithLabelValues(route, metrics.CodeClass(sw.code)).Inc() }()
		allowed := false
		for _, m := range methods {
			if r.Method == m {
				allowed = true
				break
			}
		}
		if !allowed {
			sw.Header().Set("allow", strings.Join(methods, ", "))
			writeJSON(sw, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		if err := fn(sw, r); err != nil {
			code := statusOf(err)
			if code >= 500 {
				logger.L().Error("api_error", "route", route, "err", err)
			} else {
				logger.L().Debug("api_reject", "route", route, "err", err)
			}
			writeJSON(sw, code, map[string]string{"error": err.Error()})
		}
	})
}

type codeWriter struct {
	http.ResponseWriter
	code int
}

func (w *codeWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

var (
	get       = []string{http.MethodGet}
	post      = []string{http.MethodPost}
	getDelete = []string{http.MethodGet, http.MethodDelete}
)

// BuildRoutes：注册全部网格接口
func BuildRoutes(d Deps) *http.ServeMux {
	if d.Proj == nil {
		d.Proj = snyder.Instance()
	}
	if d.Grid.DefaultResolution == 0 {
		d.Grid = config.Default().Grid
	}
	s := &server{Deps: d, hit: hittest.New(d.Proj)}
	mux := http.NewServeMux()
	handle(mux, "/cell", get, s.cell)
	handle(mux, "/point", get, s.point)
	handle(mux, "/area", get, s.area)
	handle(mux, "/children", get, s.children)
	handle(mux, "/neighbours", get, s.neighbours)
	handle(mux, "/parent", get, s.parent)
	handle(mux, "/boundary", get, s.boundary)
	handle(mux, "/rasterize", post, s.rasterize)
	handle(mux, "/regions", getDelete, s.regions)
	handle(mux, "/ip", get, s.ip)
	handle(mux, "/hit", get, s.hitTest)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

type server struct {
	Deps
	hit *hittest.Tester
}

// resolution：参数 res，缺省取配置默认值
func (s *server) resolution(r *http.Request, key string, max int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return s.Grid.DefaultResolution, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest(errors.New(key + ": not an integer"))
	}
	if n < 1 || n > max {
		return 0, badRequest(errors.New(key + ": out of [1, " + strconv.Itoa(max) + "]"))
	}
	return n, nil
}

func latLon(r *http.Request) (geo.LatLon, error) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		return geo.LatLon{}, badRequest(errors.New("lat: expected a number in [-90, 90]"))
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		return geo.LatLon{}, badRequest(errors.New("lon: expected a number in [-180, 180]"))
	}
	return geo.FromDegrees(lat, lon), nil
}

func addressParam(r *http.Request) (index.Address, error) {
	v := r.URL.Query().Get("index")
	if v == "" {
		return index.Null, badRequest(errors.New("index: required"))
	}
	a, err := index.Parse(v)
	if err != nil {
		return index.Null, err
	}
	if a.IsNull() {
		return index.Null, badRequest(errors.New("index: null address"))
	}
	return a, nil
}

type cellResponse struct {
	Index      string `json:"index"`
	Resolution int    `json:"resolution"`
	Face       string `json:"face"`
	Pentagon   bool   `json:"pentagon"`
}

func cellOf(a index.Address) cellResponse {
	face := strconv.Itoa(a.Primary())
	if a.IsFace() {
		face = string(rune(a.Primary()))
	}
	return cellResponse{Index: a.String(), Resolution: a.Resolution(), Face: face, Pentagon: a.IsPentagon()}
}

func (s *server) forward(ll geo.LatLon, res int) (index.Address, error) {
	start := time.Now()
	a, err := s.Proj.Forward(ll, res)
	metrics.ObserveProjection("forward", start)
	return a, err
}

// inverse：未收敛时返回近似点，converged 为 false
func (s *server) inverse(a index.Address) (geo.LatLon, bool, error) {
	start := time.Now()
	ll, err := s.Proj.Inverse(a)
	metrics.ObserveProjection("inverse", start)
	if errors.Is(err, snyder.ErrNotConverged) {
		metrics.NotConvergedTotal.Inc()
		return ll, false, nil
	}
	return ll, err == nil, err
}

func (s *server) cell(w http.ResponseWriter, r *http.Request) error {
	ll, err := latLon(r)
	if err != nil {
		return err
	}
	res, err := s.resolution(r, "res", index.MaxResolution)
	if err != nil {
		return err
	}
	key := "cell:" + strconv.FormatFloat(ll.LatDegrees(), 'f', 9, 64) + ":" +
		strconv.FormatFloat(ll.LonDegrees(), 'f', 9, 64) + ":" + strconv.Itoa(res)
	var out cellResponse
	if s.Cache != nil && s.Cache.GetJSON(r.Context(), key, &out) {
		writeJSON(w, http.StatusOK, out)
		return nil
	}
	a, err := s.forward(ll, res)
	if err != nil {
		return err
	}
	out = cellOf(a)
	if s.Cache != nil {
		s.Cache.SetJSON(r.Context(), key, out)
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

type pointResponse struct {
	Index     string  `json:"index"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Converged bool    `json:"converged"`
}

func (s *server) point(w http.ResponseWriter, r *http.Request) error {
	a, err := addressParam(r)
	if err != nil {
		return err
	}
	ll, ok, err := s.inverse(a)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, pointResponse{Index: a.String(), Lat: ll.LatDegrees(), Lon: ll.LonDegrees(), Converged: ok})
	return nil
}

type areaResponse struct {
	Index           string  `json:"index"`
	Resolution      int     `json:"resolution"`
	Pentagon        bool    `json:"pentagon"`
	UnitArea        float64 `json:"unit_area"`
	ReferenceAreaM2 float64 `json:"reference_area_m2"`
	CellDistanceM   float64 `json:"cell_distance_m"`
}

func (s *server) area(w http.ResponseWriter, r *http.Request) error {
	a, err := addressParam(r)
	if err != nil {
		return err
	}
	unit, err := snyder.CellAreaOnUnitSphere(a)
	if err != nil {
		return err
	}
	ref, err := snyder.CellAreaOnReferenceSphere(a)
	if err != nil {
		return err
	}
	out := areaResponse{Index: a.String(), Resolution: a.Resolution(), Pentagon: a.IsPentagon(), UnitArea: unit, ReferenceAreaM2: ref}
	if d, err := snyder.CellDistanceOnReferenceSphere(a.Resolution()); err == nil {
		out.CellDistanceM = d
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

type listResponse struct {
	Index string   `json:"index"`
	Cells []string `json:"cells"`
}

func strs(as []index.Address) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.String()
	}
	return out
}

func (s *server) children(w http.ResponseWriter, r *http.Request) error {
	a, err := addressParam(r)
	if err != nil {
		return err
	}
	if a.Resolution() >= index.MaxResolution {
		return badRequest(errors.New("index: already at the finest resolution"))
	}
	writeJSON(w, http.StatusOK, listResponse{Index: a.String(), Cells: strs(index.Children(a))})
	return nil
}

func (s *server) neighbours(w http.ResponseWriter, r *http.Request) error {
	a, err := addressParam(r)
	if err != nil {
		return err
	}
	ns, err := index.Neighbours(a)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, listResponse{Index: a.String(), Cells: strs(ns)})
	return nil
}

func (s *server) parent(w http.ResponseWriter, r *http.Request) error {
	a, err := addressParam(r)
	if err != nil {
		return err
	}
	p, err := index.Parent(a)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, cellOf(p))
	return nil
}

func (s *server) boundary(w http.ResponseWriter, r *http.Request) error {
	a, err := addressParam(r)
	if err != nil {
		return err
	}
	poly, err := regions.CellBoundary(a, s.Proj)
	if err != nil {
		return err
	}
	f := geojson.NewFeature(poly)
	f.Properties["index"] = a.String()
	f.Properties["resolution"] = a.Resolution()
	writeJSON(w, http.StatusOK, f)
	return nil
}

type rasterResponse struct {
	Resolution int      `json:"resolution"`
	Mode       string   `json:"mode"`
	TileCount  int      `json:"tile_count"`
	CellCount  int      `json:"cell_count"`
	AreaM2     float64  `json:"area_m2"`
	Tiles      []string `json:"tiles"`
	Stored     string   `json:"stored,omitempty"`
}

func rasterOf(tc *polygon.TileCollection, res int, mode regions.Mode) rasterResponse {
	out := rasterResponse{Resolution: res, Mode: string(mode), TileCount: tc.GeometryCount(), CellCount: tc.CellCount(),
		AreaM2: tc.Area() * geo.ReferenceSphereRadius * geo.ReferenceSphereRadius}
	out.Tiles = make([]string, 0, out.TileCount)
	for _, t := range tc.Tiles() {
		out.Tiles = append(out.Tiles, t.String())
	}
	return out
}

// tilesFromResponse：按缓存的 "根 分辨率" 列表重建集合
func tilesFromResponse(rr rasterResponse) (*polygon.TileCollection, error) {
	return polygon.ParseTileStream(strings.NewReader(strings.Join(rr.Tiles, "\n")))
}

func rasterKey(body []byte, res int, mode regions.Mode, vertexRes int) string {
	h := fnv.New128a()
	_, _ = h.Write(body)
	return "raster:" + string(mode) + ":" + strconv.Itoa(res) + ":" + strconv.Itoa(vertexRes) + ":" + hex.EncodeToString(h.Sum(nil))
}

func (s *server) rasterize(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	res, err := s.resolution(r, "res", s.Grid.MaxRasterResolution)
	if err != nil {
		return err
	}
	mode, err := regions.ParseMode(q.Get("mode"))
	if err != nil {
		return err
	}
	name := q.Get("name")
	if name != "" && s.Store == nil {
		return errUnavailable
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	if err != nil {
		return badRequest(err)
	}
	if len(body) > maxBody {
		return &httpError{code: http.StatusRequestEntityTooLarge, err: errors.New("body too large")}
	}
	vertexRes := s.Grid.VertexResolution
	if vertexRes < res {
		vertexRes = res
	}
	key := rasterKey(body, res, mode, vertexRes)

	var out rasterResponse
	var tc *polygon.TileCollection
	if s.Cache != nil && s.Cache.GetJSON(r.Context(), key, &out) {
		if tc, err = tilesFromResponse(out); err != nil {
			tc = nil
		}
	}
	if tc == nil {
		polys, err := regions.ParseGeoJSON(body)
		if err != nil {
			return err
		}
		start := time.Now()
		tc, err = regions.Rasterize(polys, s.Proj, vertexRes, res, mode)
		if err != nil {
			return err
		}
		metrics.ObserveRasterize(string(mode), start, tc.GeometryCount())
		out = rasterOf(tc, res, mode)
		if s.Cache != nil {
			s.Cache.SetJSON(r.Context(), key, out)
		}
	}
	if name != "" {
		if err := s.Store.SaveRegion(r.Context(), name, string(mode), tc); err != nil {
			return err
		}
		out.Stored = name
		logger.L().Info("region_saved", "name", name, "tiles", out.TileCount, "res", res)
	}
	if q.Get("format") == "geojson" {
		fc, err := regions.TilesToFeatureCollection(tc, s.Proj)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, fc)
		return nil
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

type regionResponse struct {
	store.RegionInfo
	Tiles []string `json:"tiles"`
}

func (s *server) regions(w http.ResponseWriter, r *http.Request) error {
	if s.Store == nil {
		return errUnavailable
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	name := r.URL.Query().Get("name")
	if r.Method == http.MethodDelete {
		if name == "" {
			return badRequest(errors.New("name: required"))
		}
		if err := s.Store.DeleteRegion(ctx, name); err != nil {
			return err
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
	if name == "" {
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return badRequest(errors.New("limit: expected a positive integer"))
			}
			limit = n
		}
		list, err := s.Store.ListRegions(ctx, limit)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, map[string]any{"regions": list})
		return nil
	}
	reg, err := s.Store.LoadRegion(ctx, name)
	if err != nil {
		return err
	}
	if r.URL.Query().Get("format") == "geojson" {
		fc, err := regions.TilesToFeatureCollection(reg.Tiles, s.Proj)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, fc)
		return nil
	}
	out := regionResponse{RegionInfo: reg.RegionInfo}
	for _, t := range reg.Tiles.Tiles() {
		out.Tiles = append(out.Tiles, t.String())
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

type ipResponse struct {
	IP    string       `json:"ip"`
	Lat   float64      `json:"lat"`
	Lon   float64      `json:"lon"`
	Place geoip.Place  `json:"place"`
	Cell  cellResponse `json:"cell"`
}

func (s *server) ip(w http.ResponseWriter, r *http.Request) error {
	if s.GeoIP == nil {
		return errUnavailable
	}
	res, err := s.resolution(r, "res", index.MaxResolution)
	if err != nil {
		return err
	}
	ip := clientIP(r)
	ll, place, err := s.GeoIP.LocateString(ip)
	if err != nil {
		return err
	}
	a, err := s.forward(ll, res)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, ipResponse{IP: ip, Lat: ll.LatDegrees(), Lon: ll.LonDegrees(), Place: place, Cell: cellOf(a)})
	return nil
}

type hitResponse struct {
	Index         string  `json:"index"`
	Certain       bool    `json:"certain"`
	Uncertain     string  `json:"uncertain"`
	InRadiusM     float64 `json:"inradius_m"`
	CircumRadiusM float64 `json:"circumradius_m"`
}

func (s *server) hitTest(w http.ResponseWriter, r *http.Request) error {
	a, err := addressParam(r)
	if err != nil {
		return err
	}
	ll, err := latLon(r)
	if err != nil {
		return err
	}
	c, err := s.hit.For(a)
	if err != nil {
		return err
	}
	p := ll.Vector()
	writeJSON(w, http.StatusOK, hitResponse{
		Index:         a.String(),
		Certain:       c.IntersectPointCertain(p),
		Uncertain:     c.IntersectPointUncertain(p).String(),
		InRadiusM:     c.InRadius * geo.ReferenceSphereRadius,
		CircumRadiusM: c.CircumRadius * geo.ReferenceSphereRadius,
	})
	return nil
}

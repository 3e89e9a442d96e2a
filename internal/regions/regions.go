// 包 regions：GeoJSON 多边形与单元瓦片集合之间的转换
// 约束：GeoJSON 坐标为 [经度, 纬度]（度）；顶点先换算到 vertexRes 分辨率的单元中心再构环
package regions

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"pyxgrid/internal/geo"
	"pyxgrid/internal/index"
	"pyxgrid/internal/polygon"
	"pyxgrid/internal/snyder"
)

var (
	ErrBadGeoJSON = errors.New("bad geojson")
	ErrNoPolygon  = errors.New("geojson has no polygon")
	ErrBadMode    = errors.New("unknown raster mode")
)

// Mode：填充或只取轮廓
type Mode string

const (
	Fill     Mode = "fill"
	Boundary Mode = "boundary"
)

// ParseMode：空串取 fill
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", string(Fill):
		return Fill, nil
	case string(Boundary):
		return Boundary, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrBadMode)
}

// ParseGeoJSON：接受 FeatureCollection、Feature 或裸几何；返回其中全部多边形（MultiPolygon 拆开）
func ParseGeoJSON(data []byte) ([]orb.Polygon, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadGeoJSON, err)
	}
	var geoms []orb.Geometry
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadGeoJSON, err)
		}
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadGeoJSON, err)
		}
		geoms = append(geoms, f.Geometry)
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrBadGeoJSON)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadGeoJSON, err)
		}
		geoms = append(geoms, g.Geometry())
	}

	var out []orb.Polygon
	for _, g := range geoms {
		out = appendPolygons(out, g)
	}
	if len(out) == 0 {
		return nil, ErrNoPolygon
	}
	return out, nil
}

func appendPolygons(out []orb.Polygon, g orb.Geometry) []orb.Polygon {
	switch x := g.(type) {
	case orb.Polygon:
		return append(out, x)
	case orb.MultiPolygon:
		return append(out, x...)
	case orb.Collection:
		for _, c := range x {
			out = appendPolygons(out, c)
		}
	}
	return out
}

// ToPolygon：每个环的顶点换算成 vertexRes 上的单元，首环为外环
func ToPolygon(p orb.Polygon, proj *snyder.Projector, vertexRes int) (*polygon.Polygon, error) {
	if proj == nil {
		proj = snyder.Instance()
	}
	out := polygon.New(proj)
	for i, ring := range p {
		for _, pt := range ring {
			a, err := proj.Forward(geo.FromDegrees(pt.Lat(), pt.Lon()), vertexRes)
			if err != nil {
				return nil, fmt.Errorf("ring %d vertex %v: %w", i, pt, err)
			}
			if err := out.AddVertex(a); err != nil {
				return nil, err
			}
		}
		out.CloseRing()
	}
	return out, nil
}

// Rasterize：全部多边形在 res 上的并集
func Rasterize(polys []orb.Polygon, proj *snyder.Projector, vertexRes, res int, mode Mode) (*polygon.TileCollection, error) {
	out := polygon.NewTileCollection()
	for i, p := range polys {
		pg, err := ToPolygon(p, proj, vertexRes)
		if err != nil {
			return nil, fmt.Errorf("polygon %d: %w", i, err)
		}
		var tc *polygon.TileCollection
		if mode == Boundary {
			tc, err = pg.RasterizeBoundary(res)
		} else {
			tc, err = pg.Rasterize(res)
		}
		if err != nil {
			return nil, fmt.Errorf("polygon %d: %w", i, err)
		}
		out.AddGeometry(tc)
	}
	return out, nil
}

// TilesToFeatureCollection：每个瓦片根输出为其中心点要素，集合带整体包围盒
func TilesToFeatureCollection(tc *polygon.TileCollection, proj *snyder.Projector) (*geojson.FeatureCollection, error) {
	if proj == nil {
		proj = snyder.Instance()
	}
	fc := geojson.NewFeatureCollection()
	var centres orb.MultiPoint
	for _, t := range tc.Tiles() {
		ll, err := proj.Inverse(t.Root)
		if err != nil {
			return nil, fmt.Errorf("tile %s: %w", t.Root, err)
		}
		pt := orb.Point{ll.LonDegrees(), ll.LatDegrees()}
		centres = append(centres, pt)
		f := geojson.NewFeature(pt)
		f.Properties["index"] = t.Root.String()
		f.Properties["root_resolution"] = t.Root.Resolution()
		f.Properties["resolution"] = t.Res
		fc.Append(f)
	}
	if len(centres) > 0 {
		fc.BBox = geojson.NewBBox(centres.Bound())
	}
	return fc, nil
}

// CellBoundary：单元边界多边形；顶点取中心与相邻两个邻居中心的球面质心
func CellBoundary(a index.Address, proj *snyder.Projector) (orb.Polygon, error) {
	if proj == nil {
		proj = snyder.Instance()
	}
	c, err := proj.InverseVector(a)
	if err != nil {
		return nil, err
	}
	ns, err := index.Neighbours(a)
	if err != nil {
		return nil, err
	}
	if len(ns) < 3 {
		return nil, fmt.Errorf("cell %s has %d neighbours: %w", a, len(ns), index.ErrIndexResolution)
	}
	u := c.Ortho()
	w := c.Cross(u)
	type around struct {
		v     r3.Vector
		angle float64
	}
	pts := make([]around, 0, len(ns))
	for _, n := range ns {
		v, err := proj.InverseVector(n)
		if err != nil {
			return nil, err
		}
		pts = append(pts, around{v: v, angle: math.Atan2(v.Dot(w), v.Dot(u))})
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].angle < pts[j].angle })

	ring := make(orb.Ring, 0, len(pts)+1)
	for i := range pts {
		v := c.Add(pts[i].v).Add(pts[(i+1)%len(pts)].v).Normalize()
		ll := geo.FromVector(v)
		ring = append(ring, orb.Point{ll.LonDegrees(), ll.LatDegrees()})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}, nil
}

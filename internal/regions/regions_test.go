package regions

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"

	"pyxgrid/internal/geo"
	"pyxgrid/internal/icosahedron"
	"pyxgrid/internal/index"
	"pyxgrid/internal/snyder"
)

// square：以 (lat, lon) 为中心、半宽 half 度的经纬度矩形，逆时针
func square(lat, lon, half float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{lon - half, lat - half},
		{lon + half, lat - half},
		{lon + half, lat + half},
		{lon - half, lat + half},
		{lon - half, lat - half},
	}}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		err  bool
	}{
		{"", Fill, false},
		{"fill", Fill, false},
		{"BOUNDARY", Boundary, false},
		{"outline", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("ParseMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestParseGeoJSON(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		count int
		err   error
	}{
		{"bare polygon", `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`, 1, nil},
		{"feature", `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}`, 1, nil},
		{"collection", `{"type":"FeatureCollection","features":[
			{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}},
			{"type":"Feature","properties":{},"geometry":{"type":"MultiPolygon","coordinates":[[[[5,5],[6,5],[6,6],[5,5]]],[[[8,8],[9,8],[9,9],[8,8]]]]}},
			{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[3,3]}}]}`, 3, nil},
		{"point only", `{"type":"Point","coordinates":[3,3]}`, 0, ErrNoPolygon},
		{"not json", `{"type":`, 0, ErrBadGeoJSON},
		{"missing type", `{"coordinates":[]}`, 0, ErrBadGeoJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGeoJSON([]byte(tt.body))
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("err = %v, want %v", err, tt.err)
				}
				return
			}
			if err != nil || len(got) != tt.count {
				t.Fatalf("got %d polygons (%v)", len(got), err)
			}
		})
	}
}

func TestRasterizeSquare(t *testing.T) {
	proj := snyder.Instance()
	f, _ := icosahedron.Default().Face(0)
	c := f.CentroidLL
	poly := square(c.LatDegrees(), c.LonDegrees(), 5)

	fill, err := Rasterize([]orb.Polygon{poly}, proj, 10, 6, Fill)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	centre, _ := proj.Forward(c, 6)
	far, _ := proj.Forward(geo.FromDegrees(-10, -100), 6)
	if !fill.Contains(centre) || fill.Contains(far) {
		t.Fatalf("fill contains centre=%v far=%v", fill.Contains(centre), fill.Contains(far))
	}
	if area := fill.Area(); area <= 0 || area > 4*math.Pi {
		t.Fatalf("area %v", area)
	}

	outline, err := Rasterize([]orb.Polygon{poly}, proj, 10, 6, Boundary)
	if err != nil {
		t.Fatalf("boundary: %v", err)
	}
	corner, _ := proj.Forward(geo.FromDegrees(c.LatDegrees()-5, c.LonDegrees()-5), 6)
	if outline.Contains(centre) || !outline.Contains(corner) {
		t.Fatalf("outline contains centre=%v corner=%v", outline.Contains(centre), outline.Contains(corner))
	}

	// 两个不相交的多边形取并
	other := square(-c.LatDegrees(), c.LonDegrees()+180, 5)
	both, err := Rasterize([]orb.Polygon{poly, other}, proj, 10, 6, Fill)
	if err != nil {
		t.Fatalf("union: %v", err)
	}
	if both.CellCount() <= fill.CellCount() || !both.Contains(centre) {
		t.Fatalf("union cells %d, single %d", both.CellCount(), fill.CellCount())
	}
}

func TestTilesToFeatureCollection(t *testing.T) {
	f, _ := icosahedron.Default().Face(0)
	c := f.CentroidLL
	tc, err := Rasterize([]orb.Polygon{square(c.LatDegrees(), c.LonDegrees(), 3)}, nil, 10, 5, Fill)
	if err != nil {
		t.Fatal(err)
	}
	fc, err := TilesToFeatureCollection(tc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != tc.GeometryCount() || fc.BBox == nil {
		t.Fatalf("features %d, tiles %d, bbox %v", len(fc.Features), tc.GeometryCount(), fc.BBox)
	}
	for _, ft := range fc.Features {
		a, err := index.Parse(ft.Properties.MustString("index"))
		if err != nil || !tc.Contains(a) {
			t.Fatalf("feature index %v (%v)", ft.Properties["index"], err)
		}
	}
	if _, err := json.Marshal(fc); err != nil {
		t.Fatalf("marshal: %v", err)
	}
}

func TestCellBoundary(t *testing.T) {
	proj := snyder.Instance()
	tests := []struct {
		cell  string
		sides int
	}{
		{"A-00", 6},
		{"C-0304", 6},
		{"1-0", 5},
		{"12-000", 5},
	}
	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			a := index.MustParse(tt.cell)
			p, err := CellBoundary(a, proj)
			if err != nil {
				t.Fatal(err)
			}
			ring := p[0]
			if len(ring) != tt.sides+1 || ring[0] != ring[len(ring)-1] {
				t.Fatalf("ring %v", ring)
			}
			centre, _ := proj.Inverse(a)
			cr := index.CircumRadius(a.Resolution()) * icosahedron.CentralAngle
			for _, pt := range ring {
				d := geo.Distance(centre, geo.FromDegrees(pt.Lat(), pt.Lon()))
				if d < 0.7*cr || d > 1.3*cr {
					t.Fatalf("vertex %v at %v, circumradius %v", pt, d, cr)
				}
			}
		})
	}
}

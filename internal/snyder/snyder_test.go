package snyder

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"

	"pyxgrid/internal/geo"
	"pyxgrid/internal/icosahedron"
	"pyxgrid/internal/index"
)

func TestConstants(t *testing.T) {
	if math.Abs(dh*180/math.Pi-37.3773681406498) > 1e-9 {
		t.Fatalf("dh = %v°", dh*180/math.Pi)
	}
	if math.Abs(r1-0.9103832815095) > 1e-9 {
		t.Fatalf("r1 = %v", r1)
	}
}

func TestInstanceShared(t *testing.T) {
	var wg sync.WaitGroup
	got := make([]*Projector, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = Instance()
		}(i)
	}
	wg.Wait()
	for _, p := range got {
		if p != got[0] || p.Model() != icosahedron.Default() {
			t.Fatalf("Instance returned distinct projectors")
		}
	}
}

// 2.5° 经纬网上正投影到面再反投影回球面
func TestFaceRoundTrip(t *testing.T) {
	p := Instance()
	for lat := -90.0; lat <= 90; lat += 2.5 {
		for lon := -180.0; lon < 180; lon += 2.5 {
			ll := geo.FromDegrees(lat, lon)
			polar, face, err := p.ProjectToFace(ll)
			if err != nil {
				t.Fatalf("(%v,%v) to face: %v", lat, lon, err)
			}
			back, err := p.ProjectToSphere(polar, face)
			if err != nil {
				t.Fatalf("(%v,%v) to sphere: %v", lat, lon, err)
			}
			if !geo.Equal(ll, back, 1e-10) {
				t.Fatalf("(%v,%v) -> %+v on %c -> (%v,%v)", lat, lon, polar, face, back.LatDegrees(), back.LonDegrees())
			}
		}
	}
}

// 分辨率 6 全部单元：地址 → 中心 → 地址
func TestAddressRoundTrip(t *testing.T) {
	p := Instance()
	cells := index.Resolution2Cells()
	for res := 3; res <= 6; res++ {
		var next []index.Address
		for _, c := range cells {
			next = append(next, index.Children(c)...)
		}
		cells = next
	}
	if len(cells) != 10*int(math.Pow(3, 6))+2 {
		t.Fatalf("resolution 6 cell count = %d", len(cells))
	}
	for _, c := range cells {
		ll, err := p.Inverse(c)
		if err != nil {
			t.Fatalf("inverse %s: %v", c, err)
		}
		got, err := p.Forward(ll, c.Resolution())
		if err != nil || got != c {
			t.Fatalf("forward(inverse(%s)) = %s (%v)", c, got, err)
		}
		v, err := p.InverseVector(c)
		if err != nil {
			t.Fatalf("inverse vector %s: %v", c, err)
		}
		if got, err := p.ForwardVector(v, c.Resolution()); err != nil || got != c {
			t.Fatalf("forward vector %s = %s (%v)", c, got, err)
		}
	}
}

func TestCoarseCells(t *testing.T) {
	p := Instance()
	m := p.Model()
	ll, err := p.Inverse(index.MustParse("1"))
	if err != nil || !geo.Equal(ll, m.Vertex(1), 1e-10) {
		t.Fatalf("inverse of vertex 1 = %v (%v)", ll, err)
	}
	fa, _ := m.Face(0)
	ll, err = p.Inverse(index.MustParse("A-0"))
	if err != nil || !geo.Equal(ll, fa.CentroidLL, 1e-12) {
		t.Fatalf("inverse of A-0 = %v (%v)", ll, err)
	}
	tests := []struct {
		ll   geo.LatLon
		res  int
		want string
	}{
		{fa.CentroidLL, 1, "A"},
		{fa.CentroidLL, 2, "A-0"},
		{fa.CentroidLL, 4, "A-000"},
		{m.Vertex(1), 1, "1"},
		{m.Vertex(12), 2, "12-0"},
	}
	for _, tt := range tests {
		got, err := p.Forward(tt.ll, tt.res)
		if err != nil || got.String() != tt.want {
			t.Errorf("Forward(%v, %d) = %s (%v), want %s", tt.ll, tt.res, got, err, tt.want)
		}
	}
}

func TestForwardRange(t *testing.T) {
	p := Instance()
	for _, res := range []int{0, -1, index.MaxResolution + 1} {
		if _, err := p.Forward(geo.FromDegrees(10, 10), res); !errors.Is(err, ErrProjectionRange) {
			t.Fatalf("res %d err = %v", res, err)
		}
	}
	if _, err := p.Inverse(index.Null); !errors.Is(err, index.ErrIndexResolution) {
		t.Fatalf("inverse null err = %v", err)
	}
	if _, err := p.ProjectToSphere(geo.Polar{Radius: 0.1}, 'Z'); !errors.Is(err, icosahedron.ErrInvalidFace) {
		t.Fatalf("bad face err = %v", err)
	}
}

func TestInverseConverges(t *testing.T) {
	p := Instance()
	for _, angle := range []float64{0.1, 1, 2, 3, -1, -2.5} {
		_, conv, err := p.ProjectToSphereDetail(geo.Polar{Radius: 0.3, Angle: angle}, 'C')
		if err != nil || !conv.Converged || conv.Iterations > MaxInverseIterations {
			t.Fatalf("angle %v: %+v (%v)", angle, conv, err)
		}
	}
}

func TestInverseNotConverged(t *testing.T) {
	p := Instance()
	tests := []struct {
		name  string
		polar geo.Polar
		face  int
	}{
		{"nan angle", geo.Polar{Radius: 0.3, Angle: math.NaN()}, 'C'},
		{"nan angle on A", geo.Polar{Radius: 0.01, Angle: math.NaN()}, 'A'},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, conv, err := p.ProjectToSphereDetail(tt.polar, tt.face)
			if err != nil {
				t.Fatalf("detail err = %v", err)
			}
			if conv.Converged || conv.Iterations != MaxInverseIterations {
				t.Fatalf("convergence = %+v, want %d iterations without convergence", conv, MaxInverseIterations)
			}
			if _, err := p.ProjectToSphere(tt.polar, tt.face); !errors.Is(err, ErrNotConverged) {
				t.Fatalf("ProjectToSphere err = %v, want ErrNotConverged", err)
			}
		})
	}
}

func TestForwardFinestResolutions(t *testing.T) {
	p := Instance()
	for _, res := range []int{index.MaxResolution - 2, index.MaxResolution - 1, index.MaxResolution} {
		t.Run(fmt.Sprintf("res%d", res), func(t *testing.T) {
			rng := rand.New(rand.NewSource(int64(res)))
			for i := 0; i < 2000; i++ {
				a, err := p.Randomize(rng, res)
				if err != nil {
					t.Fatalf("point %d: %v", i, err)
				}
				if a.Resolution() != res || !index.IsValidIndex(a) {
					t.Fatalf("point %d: %s", i, a)
				}
				if i%10 != 0 {
					continue
				}
				ll, err := p.Inverse(a)
				if err != nil {
					t.Fatalf("inverse %s: %v", a, err)
				}
				if got, err := p.Forward(ll, res); err != nil || got != a {
					t.Fatalf("forward(inverse(%s)) = %s (%v)", a, got, err)
				}
			}
		})
	}
}

func TestAreas(t *testing.T) {
	hex, _ := CellAreaOnUnitSphere(index.MustParse("A-0"))
	pent, _ := CellAreaOnUnitSphere(index.MustParse("5-0"))
	res := float64(index.MustParse("A-0").Resolution())
	if got := hex * 30 * math.Pow(3, res-1) / 4; math.Abs(got-math.Pi) > 1e-12 {
		t.Fatalf("hexagon identity = %v", got)
	}
	if math.Abs(5.0/6.0*hex-pent) > 1e-15 {
		t.Fatalf("pentagon %v, hexagon %v", pent, hex)
	}
	refHex, _ := CellAreaOnReferenceSphere(index.MustParse("A-0"))
	refPent, _ := CellAreaOnReferenceSphere(index.MustParse("5-0"))
	if math.Abs(5.0/6.0*refHex-refPent) > 1e-3 {
		t.Fatalf("reference pentagon %v, hexagon %v", refPent, refHex)
	}

	total := 0.0
	for _, c := range index.Resolution2Cells() {
		a, err := CellAreaOnUnitSphere(c)
		if err != nil {
			t.Fatalf("area %s: %v", c, err)
		}
		total += a
	}
	if math.Abs(total-4*math.Pi) > 1e-12 {
		t.Fatalf("resolution 2 areas sum to %v", total)
	}
	if _, err := CellAreaOnUnitSphere(index.Null); err == nil {
		t.Fatalf("null area should fail")
	}
}

func TestPrecision(t *testing.T) {
	for res := 0; res <= 30; res++ {
		prec, err := ResolutionToPrecision(res)
		if err != nil {
			t.Fatalf("res %d: %v", res, err)
		}
		got, err := PrecisionToResolution(prec)
		if err != nil || got != res {
			t.Fatalf("PrecisionToResolution(%v) = %d (%v), want %d", prec, got, err, res)
		}
	}
	for _, p := range []float64{0, -1, icosahedron.CentralAngle} {
		if _, err := PrecisionToResolution(p); !errors.Is(err, ErrProjectionRange) {
			t.Fatalf("precision %v err = %v", p, err)
		}
	}
	if _, err := ResolutionToPrecision(-1); !errors.Is(err, ErrProjectionRange) {
		t.Fatalf("negative resolution err = %v", err)
	}
	d2, _ := CellDistanceOnReferenceSphere(2)
	d3, _ := CellDistanceOnReferenceSphere(3)
	if !(d3 < d2) || math.Abs(d2/d3-math.Sqrt(3)) > 1e-9 {
		t.Fatalf("cell distances %v %v", d2, d3)
	}
	if _, err := CellDistanceOnReferenceSphere(0); !errors.Is(err, ErrProjectionRange) {
		t.Fatalf("distance at 0 err = %v", err)
	}
}

func TestRandomize(t *testing.T) {
	p := Instance()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		res := rng.Intn(20) + 1
		a, err := p.Randomize(rng, res)
		if err != nil {
			t.Fatalf("randomize: %v", err)
		}
		if a.Resolution() != res || !index.IsValidIndex(a) {
			t.Fatalf("randomize(%d) = %s", res, a)
		}
	}
}

package geo

import (
	"math"
	"testing"
)

func TestVectorRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
	}{
		{"origin", 0, 0},
		{"north_pole", 90, 0},
		{"south_pole", -90, 0},
		{"dateline", 10, 180},
		{"negative", -33.5, -70.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ll := FromDegrees(tt.lat, tt.lon)
			got := FromVector(ll.Vector())
			if !Equal(ll, got, 1e-12) {
				t.Fatalf("round trip %v -> %v", ll, got)
			}
		})
	}
}

func TestEqualDateline(t *testing.T) {
	if !Equal(FromDegrees(0, 180), FromDegrees(0, -180), 1e-12) {
		t.Fatalf("expected +180 and -180 to be equal")
	}
	if !Equal(FromDegrees(90, 10), FromDegrees(90, -120), 1e-12) {
		t.Fatalf("expected pole longitudes to be ignored")
	}
	if Equal(FromDegrees(0, 1), FromDegrees(0, 2), 1e-6) {
		t.Fatalf("distinct points reported equal")
	}
}

func TestOffsetFromPole(t *testing.T) {
	pole := FromDegrees(90, 0)
	v := Offset(pole, math.Pi/2, math.Pi)
	got := FromVector(v)
	if math.Abs(got.Lat) > 1e-12 || math.Abs(got.Lon) > 1e-12 {
		t.Fatalf("offset from pole along azimuth 180 = %v, want (0,0)", got)
	}
}

func TestOffsetMatchesDistanceAndAzimuth(t *testing.T) {
	from := FromDegrees(20, 30)
	v := Offset(from, 0.3, 0.7)
	to := FromVector(v)
	if d := Distance(from, to); math.Abs(d-0.3) > 1e-12 {
		t.Fatalf("distance = %v, want 0.3", d)
	}
	if az := Azimuth(from, to); math.Abs(az-0.7) > 1e-12 {
		t.Fatalf("azimuth = %v, want 0.7", az)
	}
}

func TestPolarAdd(t *testing.T) {
	p := Polar{Radius: 1, Angle: 0}.Add(Polar{Radius: 1, Angle: math.Pi / 2})
	if math.Abs(p.Radius-math.Sqrt2) > 1e-12 || math.Abs(p.Angle-math.Pi/4) > 1e-12 {
		t.Fatalf("sum = %+v", p)
	}
}

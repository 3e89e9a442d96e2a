package index

import (
	"errors"
	"math"
	"testing"
)

func TestAddScenario(t *testing.T) {
	got, err := MustParse("1-030").Add(MustParse("1-201"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if got.String() != "1-203" {
		t.Fatalf("1-030 + 1-201 = %s, want 1-203", got)
	}
	if got.Resolution() > MustParse("1-030").Resolution() {
		t.Fatalf("sum grew past the left operand")
	}
}

func TestAddErrors(t *testing.T) {
	tests := []struct {
		name string
		a, b Address
		res  int
	}{
		{"null", Null, MustParse("1-0"), 2},
		{"primaries", MustParse("1-0"), MustParse("2-0"), 2},
		{"low_resolution", MustParse("1"), MustParse("1"), 1},
		{"operand_too_fine", MustParse("A-000"), MustParse("A-0"), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Add(tt.a, tt.b, tt.res); !errors.Is(err, ErrIndexMath) {
				t.Fatalf("err = %v, want ErrIndexMath", err)
			}
		})
	}
}

func TestDigitAdd(t *testing.T) {
	sum, err := addAt([]byte("50601"), []byte("10203"), 4, false)
	if err != nil || string(sum) != "60102" {
		t.Fatalf("50601 + 10203 = %s (%v), want 60102", sum, err)
	}
	sum, err = addAt([]byte("402"), []byte("403"), 2, true)
	if err != nil || string(sum) != "3040" {
		t.Fatalf("402 + 403 = %s (%v), want 3040", sum, err)
	}
	if _, err := addAt([]byte("403"), []byte("404"), 3, false); !errors.Is(err, ErrIndexMath) {
		t.Fatalf("403 + 404 without growth err = %v", err)
	}
	if _, err := addAt([]byte("403"), []byte("404"), 3, true); err != nil {
		t.Fatalf("403 + 404 with growth err = %v", err)
	}
}

func TestMoveMatchesMultiply(t *testing.T) {
	const res = 10
	for dir := 1; dir <= NumSides; dir++ {
		cur := []byte("00000000000")
		for n := 1; n < 50; n++ {
			cur = moveDigits(cur, dir)
			want, err := multiply(n, dir, res)
			if err != nil {
				t.Fatalf("multiply(%d,%d): %v", n, dir, err)
			}
			if string(cur) != string(want) {
				t.Fatalf("dir %d step %d: move %s, multiply %s", dir, n, cur, want)
			}
		}
	}
}

func TestRotateDigits(t *testing.T) {
	b := []byte("010203040506")
	rotateDigits(b, -1)
	if string(b) != "060102030405" {
		t.Fatalf("cw rotate = %s", b)
	}
	rotateDigits(b, 1)
	if string(b) != "010203040506" {
		t.Fatalf("ccw rotate = %s", b)
	}
	if got := RotateDirection(6, 1); got != 1 {
		t.Fatalf("RotateDirection(6,1) = %d", got)
	}
	if got := RotateDirection(1, -1); got != 6 {
		t.Fatalf("RotateDirection(1,-1) = %d", got)
	}
	if got := RotateDirection(0, 3); got != 0 {
		t.Fatalf("direction 0 must not rotate")
	}
}

func TestSubIndexHelpers(t *testing.T) {
	d, pos := SubIndex("000103").MostSignificant()
	if d != 1 || pos != 2 {
		t.Fatalf("MostSignificant = (%d,%d), want (1,2)", d, pos)
	}
	if got := SubIndex("10203").AdjustLeft(6); got != "0010203" {
		t.Fatalf("AdjustLeft up = %s", got)
	}
	if got := SubIndex("0010203").AdjustLeft(2); got != "10203" {
		t.Fatalf("AdjustLeft down = %s", got)
	}
	if got := SubIndex("00010203").AdjustLeft(5); got != "010203" {
		t.Fatalf("AdjustLeft partial = %s", got)
	}
	z := SubIndex("000000000000")
	if z.IsAtOrigin(0) || !z.IsAtOrigin(1) || !z.IsAtOrigin(len(z)+1) {
		t.Fatalf("IsAtOrigin wrong")
	}
	if SubIndex("01").HasVertexChildren() || !SubIndex("10").HasVertexChildren() {
		t.Fatalf("HasVertexChildren wrong")
	}
}

func TestChildren(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"A", []string{"A-0"}},
		{"1", []string{"1-0", "1-2", "1-3", "1-4", "1-5", "1-6"}},
		{"7", []string{"7-0", "7-1", "7-2", "7-3", "7-5", "7-6"}},
		{"1-0", []string{"1-00", "1-02", "1-03", "1-04", "1-05", "1-06"}},
		{"A-0", []string{"A-00", "A-01", "A-02", "A-03", "A-04", "A-05", "A-06"}},
		{"A-01", []string{"A-010"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Children(MustParse(tt.in))
			if len(got) != len(tt.want) {
				t.Fatalf("children = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i].String() != tt.want[i] {
					t.Fatalf("child %d = %s, want %s", i, got[i], tt.want[i])
				}
				if !IsValidIndex(got[i]) {
					t.Fatalf("child %s is not valid", got[i])
				}
			}
		})
	}
	if n := len(Resolution2Cells()); n != 92 {
		t.Fatalf("resolution 2 cell count = %d, want 92", n)
	}
}

func TestParent(t *testing.T) {
	p, err := Parent(MustParse("A-0102"))
	if err != nil || p.String() != "A-010" {
		t.Fatalf("parent = %s (%v)", p, err)
	}
	p, err = Parent(MustParse("3-0"))
	if err != nil || p.String() != "3" {
		t.Fatalf("parent = %s (%v)", p, err)
	}
	if _, err := Parent(MustParse("3")); !errors.Is(err, ErrIndexResolution) {
		t.Fatalf("parent of resolution 1 err = %v", err)
	}
}

func TestMove(t *testing.T) {
	got, err := Move(MustParse("1-0"), 1)
	if err != nil || !got.IsNull() {
		t.Fatalf("move into pentagon gap = %s (%v), want NULL", got, err)
	}
	nb, err := Neighbours(MustParse("1-0"))
	if err != nil || len(nb) != 5 {
		t.Fatalf("pentagon neighbours = %v (%v)", nb, err)
	}
	nb, err = Neighbours(MustParse("A-00"))
	if err != nil || len(nb) != 6 {
		t.Fatalf("hexagon neighbours = %v (%v)", nb, err)
	}
	for _, n := range nb {
		if n.Resolution() != 3 || !IsValidIndex(n) {
			t.Fatalf("neighbour %s invalid", n)
		}
	}
	in := MustParse("A-0000")
	got, err = Move(in, 1)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	back, err := Move(got, NegateDirection(1))
	if err != nil || back != in {
		t.Fatalf("move there and back = %s (%v)", back, err)
	}
}

func TestFaceHelpers(t *testing.T) {
	if v := FaceVertices('A'); v != [3]int{1, 2, 3} {
		t.Fatalf("A vertices = %v", v)
	}
	if v := FaceVertices('F'); v != [3]int{7, 3, 2} {
		t.Fatalf("F vertices = %v", v)
	}
	if !FaceIsUp('A') || FaceIsUp('F') {
		t.Fatalf("face orientation wrong")
	}
	if Dir1Angle('A') != math.Pi/2 || Dir1Angle('F') != -math.Pi/2 {
		t.Fatalf("dir1 angle wrong")
	}
	tests := []struct {
		angle float64
		want  int
	}{
		{0, 1}, {math.Pi / 2, 2}, {math.Pi, 4}, {-0.1, 6}, {-math.Pi / 2, 5},
		{math.Pi / 3, 2}, {2 * math.Pi / 3, 3}, {4 * math.Pi / 3, 5}, {5 * math.Pi / 3, 6},
		{2 * math.Pi, 1}, {-math.Pi, 4}, {math.Nextafter(math.Pi, 0), 3},
	}
	for _, tt := range tests {
		if got := DirectionFromAngle(tt.angle); got != tt.want {
			t.Errorf("DirectionFromAngle(%v) = %d, want %d", tt.angle, got, tt.want)
		}
	}
	if o, _ := FaceOwner('A'); o != 3 {
		t.Fatalf("owner of A = %d", o)
	}
	if d, ok := FaceDirectionFromVertex(1, 'C'); !ok || d != 4 {
		t.Fatalf("direction 1 -> C = %d %v", d, ok)
	}
	if f, _ := FaceFromVertex(1, 1); f != -1 {
		t.Fatalf("gap face = %d", f)
	}
}

// 逐级展开到分辨率 5 的全部单元，校验地址与面内极坐标互转
func TestPolarRoundTrip(t *testing.T) {
	cells := Resolution2Cells()
	for res := 2; res <= 5; res++ {
		for _, c := range cells {
			p, face, err := AddressToPolar(c)
			if err != nil {
				t.Fatalf("to polar %s: %v", c, err)
			}
			got, err := PolarToAddress(p, res, face)
			if err != nil {
				t.Fatalf("to index %s: %v", c, err)
			}
			if got != c {
				t.Fatalf("round trip %s -> %+v on %c -> %s", c, p, face, got)
			}
		}
		var next []Address
		for _, c := range cells {
			next = append(next, Children(c)...)
		}
		cells = next
	}
}

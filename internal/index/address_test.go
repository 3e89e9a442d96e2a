package index

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
)

var faceSamples = []string{
	"A-0000", "A-0001", "A-0002", "A-0003", "A-0004", "A-0005", "A-0006",
	"A-0010", "A-0020", "A-0030", "A-0040", "A-0050", "A-0060",
	"A-0100", "A-0101", "A-0102", "A-0103", "A-0104", "A-0105", "A-0106",
	"A-0200", "A-0201", "A-0202", "A-0203", "A-0204", "A-0205", "A-0206",
	"A-0300", "A-0301", "A-0302", "A-0303", "A-0304", "A-0305", "A-0306",
	"A-0400", "A-0401", "A-0402", "A-0403", "A-0404", "A-0405", "A-0406",
	"A-0500", "A-0501", "A-0502", "A-0503", "A-0504", "A-0505", "A-0506",
	"A-0600", "A-0601", "A-0602", "A-0603", "A-0604", "A-0605", "A-0606",
}

func TestParseAndString(t *testing.T) {
	a, err := Parse("1-20103040506010")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := a.Resolution(); got != 15 {
		t.Fatalf("resolution = %d, want 15", got)
	}
	if got := a.String(); got != "1-20103040506010" {
		t.Fatalf("string = %q", got)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []string{"X", "15", "A-20", "0", "13-0", "A-0x", "1-11", "-1", "ABC", "1-1"}
	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			_, err := Parse(s)
			if !errors.Is(err, ErrIndexFormat) {
				t.Fatalf("Parse(%q) err = %v, want ErrIndexFormat", s, err)
			}
		})
	}
}

func TestParseCanonicalOnly(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"5", true},
		{"5-0", true},
		{"+5", false},
		{"05", false},
		{"05-0", false},
		{"-5", false},
		{"A-", false},
		{"1-", false},
		{"12-", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			a, err := Parse(tt.in)
			if !tt.ok {
				if !errors.Is(err, ErrIndexFormat) {
					t.Fatalf("Parse(%q) = %v, %v; want ErrIndexFormat", tt.in, a, err)
				}
				return
			}
			if err != nil || a.String() != tt.in {
				t.Fatalf("Parse(%q) = %q, %v", tt.in, a.String(), err)
			}
		})
	}
}

func TestParseResolutionLimit(t *testing.T) {
	tests := []struct {
		name string
		res  int
		ok   bool
	}{
		{"res39", MaxResolution - 1, true},
		{"res40", MaxResolution, true},
		{"res41", MaxResolution + 1, false},
		{"res42", MaxResolution + 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := "A-" + strings.Repeat("0", tt.res-1)
			a, err := Parse(s)
			if !tt.ok {
				if !errors.Is(err, ErrIndexFormat) {
					t.Fatalf("Parse(res %d) err = %v, want ErrIndexFormat", tt.res, err)
				}
				return
			}
			if err != nil || a.Resolution() != tt.res {
				t.Fatalf("Parse(res %d) = %d, %v", tt.res, a.Resolution(), err)
			}
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	in := append([]string{"NULL", "1", "12", "A", "T", "5-0", "12-0", "R-02003", "7-50"}, faceSamples...)
	for _, s := range in {
		a, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		b, err := Parse(a.String())
		if err != nil || b != a {
			t.Fatalf("round trip %q -> %q -> %v (%v)", s, a.String(), b, err)
		}
	}
	if Null.String() != NullLabel {
		t.Fatalf("null renders as %q", Null.String())
	}
}

func TestFacePentagonPredicates(t *testing.T) {
	tests := []struct {
		in               string
		face, vertex, pg bool
	}{
		{"A-0000", true, false, false},
		{"A-0001", true, false, false},
		{"5-0", false, true, true},
		{"1", false, true, true},
		{"1-000000000000000000", false, true, true},
		{"A-00000", true, false, false},
		{"1-20", false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			a := MustParse(tt.in)
			if a.IsFace() != tt.face || a.IsVertex() != tt.vertex || a.IsPentagon() != tt.pg {
				t.Fatalf("face=%v vertex=%v pentagon=%v", a.IsFace(), a.IsVertex(), a.IsPentagon())
			}
		})
	}
	if Null.IsFace() || Null.IsVertex() || Null.IsPentagon() || Null.IsPolar() {
		t.Fatalf("null predicates should be false")
	}
	if !MustParse("12-0").IsPolar() || MustParse("2-0").IsPolar() {
		t.Fatalf("polar predicate wrong")
	}
}

func TestIsPentagonAt(t *testing.T) {
	a := MustParse("1-0005")
	n := len(a.SubIndex())
	if a.IsPentagonAt(n) || a.IsPentagonAt(n+1) {
		t.Fatalf("1-0005 should not be a pentagon at %d digits", n)
	}
	if !a.IsPentagonAt(n-1) || !a.IsPentagonAt(0) {
		t.Fatalf("1-0005 should be a pentagon at %d and 0 digits", n-1)
	}
	f := MustParse("A-01")
	n = len(f.SubIndex())
	for _, k := range []int{n, n + 1, n - 1, 0} {
		if f.IsPentagonAt(k) {
			t.Fatalf("A-01 pentagon at %d", k)
		}
	}
}

func TestHasVertexChildren(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"NULL", false},
		{"1", true},
		{"1-02", false},
		{"1-20", true},
		{"A", false},
		{"A-0", true},
	}
	for _, tt := range tests {
		if got := MustParse(tt.in).HasVertexChildren(); got != tt.want {
			t.Errorf("%s: HasVertexChildren = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAncestor(t *testing.T) {
	b := MustParse("1-03")
	if Null.IsAncestorOf(Null) || Null.IsAncestorOf(b) || b.IsAncestorOf(Null) {
		t.Fatalf("null must not take part in ancestry")
	}
	a := MustParse("A")
	c := MustParse("A-01")
	if !a.IsAncestorOf(a) || !a.IsAncestorOf(c) || c.IsAncestorOf(a) {
		t.Fatalf("A / A-01 ancestry wrong")
	}
	if !c.IsDescendantOf(a) || a.IsDescendantOf(c) {
		t.Fatalf("descendant relation wrong")
	}
	if MustParse("B").IsAncestorOf(c) {
		t.Fatalf("different primaries are not related")
	}
}

func TestTruncate(t *testing.T) {
	a := MustParse("1-20103040506010")
	got, err := a.SetResolution(13)
	if err != nil {
		t.Fatalf("set resolution: %v", err)
	}
	if got.String() != "1-201030405060" {
		t.Fatalf("got %s", got)
	}
	if _, err := a.SetResolution(0); !errors.Is(err, ErrIndexResolution) {
		t.Fatalf("resolution 0 err = %v", err)
	}
	if _, err := a.SetResolution(MaxResolution + 1); !errors.Is(err, ErrIndexResolution) {
		t.Fatalf("resolution 41 err = %v", err)
	}
	if _, err := Null.SetResolution(3); !errors.Is(err, ErrIndexResolution) {
		t.Fatalf("null err = %v", err)
	}
	up, _ := MustParse("A-0").SetResolution(5)
	if up.String() != "A-0000" {
		t.Fatalf("pad got %s", up)
	}
	one, _ := up.SetResolution(1)
	if one.String() != "A" {
		t.Fatalf("resolution 1 got %s", one)
	}
}

func TestIncrementDecrement(t *testing.T) {
	start := MustParse("R-02003")
	a := start
	var err error
	for i := 0; i < 3; i++ {
		if a, err = a.IncrementResolution(); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	if a.String() != "R-02003000" {
		t.Fatalf("after increments: %s", a)
	}
	for i := 0; i < 3; i++ {
		if a, err = a.DecrementResolution(); err != nil {
			t.Fatalf("decrement: %v", err)
		}
	}
	if a != start {
		t.Fatalf("after decrements: %s", a)
	}
	for i := 0; i < 5; i++ {
		if a, err = a.DecrementResolution(); err != nil {
			t.Fatalf("decrement %d: %v", i, err)
		}
	}
	if a.Resolution() != 1 {
		t.Fatalf("resolution = %d, want 1", a.Resolution())
	}
	if _, err = a.DecrementResolution(); !errors.Is(err, ErrIndexResolution) {
		t.Fatalf("decrement below 1 err = %v", err)
	}
	if _, err = Null.IncrementResolution(); !errors.Is(err, ErrIndexResolution) {
		t.Fatalf("increment null err = %v", err)
	}
	top, _ := MustParse("A-0").SetResolution(MaxResolution)
	if _, err = top.IncrementResolution(); !errors.Is(err, ErrIndexResolution) {
		t.Fatalf("increment past max err = %v", err)
	}
}

func TestMaxChildCount(t *testing.T) {
	a := MustParse("A-0")
	for n, want := range []int{1, 7, 7} {
		if got := a.MaxChildCount(n); got != want {
			t.Errorf("A-0 MaxChildCount(%d) = %d, want %d", n, got, want)
		}
	}
	v := MustParse("1-05")
	for n, want := range []int{6, 6, 1, 1} {
		if got := v.MaxChildCount(n); got != want {
			t.Errorf("1-05 MaxChildCount(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestCompare(t *testing.T) {
	one := MustParse("1")
	if one.Less(one) || Null.Less(Null) {
		t.Fatalf("less must be irreflexive")
	}
	if !one.Less(MustParse("A")) || !Null.Less(one) {
		t.Fatalf("ordering by primary wrong")
	}
	if !MustParse("A-0").Less(MustParse("A-00")) || !MustParse("A-01").Less(MustParse("A-02")) {
		t.Fatalf("ordering by digits wrong")
	}
}

func TestStreamRoundTrip(t *testing.T) {
	in := append([]string{"NULL", "1", "A", "12-0"}, faceSamples...)
	var buf bytes.Buffer
	for _, s := range in {
		if err := MustParse(s).WriteStream(&buf); err != nil {
			t.Fatalf("write: %v", err)
		}
		buf.WriteByte('\n')
	}
	r := bufio.NewReader(&buf)
	for _, s := range in {
		got, err := ReadStream(r)
		if err != nil {
			t.Fatalf("read %s: %v", s, err)
		}
		if got != MustParse(s) {
			t.Fatalf("read %s, got %s", s, got)
		}
	}
	var one bytes.Buffer
	_ = MustParse("A-0000").WriteStream(&one)
	if one.String() != "65 0000" {
		t.Fatalf("stream form = %q", one.String())
	}
}

func TestTextMarshal(t *testing.T) {
	var a Address
	if err := a.UnmarshalText([]byte("B-0102")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b, _ := a.MarshalText()
	if string(b) != "B-0102" {
		t.Fatalf("marshal = %s", b)
	}
}

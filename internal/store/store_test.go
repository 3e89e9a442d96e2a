package store

import (
	"context"
	"errors"
	"testing"

	"pyxgrid/internal/index"
	"pyxgrid/internal/polygon"
)

func TestRootsRoundTrip(t *testing.T) {
	tc := polygon.NewTileCollection()
	for _, s := range []string{"C-04", "2-2", "A-0"} {
		if err := tc.AddTile(index.MustParse(s), 5); err != nil {
			t.Fatal(err)
		}
	}
	enc := encodeRoots(tc)
	if len(enc) != 3 || enc[0] != "2-2" {
		t.Fatalf("encoded = %v", enc)
	}
	back, err := decodeRoots(5, enc)
	if err != nil || !back.Equal(tc) {
		t.Fatalf("decoded %v (%v)", back, err)
	}
	if _, err := decodeRoots(5, []string{"Z-9"}); !errors.Is(err, index.ErrIndexFormat) {
		t.Fatalf("bad root err = %v", err)
	}
}

func TestChunkRoots(t *testing.T) {
	in := []string{"a", "b", "c", "d", "e"}
	tests := []struct {
		size int
		want []int
	}{
		{2, []int{2, 2, 1}},
		{5, []int{5}},
		{10, []int{5}},
	}
	for _, tt := range tests {
		got := chunkRoots(in, tt.size)
		if len(got) != len(tt.want) {
			t.Fatalf("size %d: %d chunks", tt.size, len(got))
		}
		for i, c := range got {
			if len(c) != tt.want[i] {
				t.Errorf("size %d chunk %d len %d", tt.size, i, len(c))
			}
		}
	}
	if chunkRoots(nil, 3) != nil {
		t.Fatalf("empty input produced chunks")
	}
}

func TestSaveEmptyRegion(t *testing.T) {
	s := AttachDB(nil)
	err := s.SaveRegion(context.Background(), "x", "fill", polygon.NewTileCollection())
	if !errors.Is(err, ErrEmptyRegion) {
		t.Fatalf("err = %v", err)
	}
}

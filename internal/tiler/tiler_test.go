package tiler

import (
	"errors"
	"reflect"
	"testing"
)

func TestSplit_PageCountIsCeiling(t *testing.T) {
	for ph := 1; ph <= 40; ph += 3 {
		for h := 1; h <= 200; h++ {
			layout, err := Split(ph, h, PageSize{Width: ph, Height: ph})
			if err != nil {
				t.Fatalf("Split(%d, %d): %v", h, ph, err)
			}
			want := (h + ph - 1) / ph
			if layout.PageCount() != want {
				t.Fatalf("h=%d ph=%d: got %d pages want %d", h, ph, layout.PageCount(), want)
			}
		}
	}
}

func TestSplit_OffsetsStepByPageHeight(t *testing.T) {
	layout, err := Split(794, 10000, A4)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if layout.Tiles[0].YOffset != 0 {
		t.Fatalf("first offset = %d, want 0", layout.Tiles[0].YOffset)
	}
	for i := 0; i+1 < len(layout.Tiles); i++ {
		cur, next := layout.Tiles[i], layout.Tiles[i+1]
		if cur.YOffset-next.YOffset != A4.Height {
			t.Fatalf("tile %d->%d step = %d", i, i+1, cur.YOffset-next.YOffset)
		}
		if next.Row != cur.Row+1 || next.Index != i+1 {
			t.Fatalf("tile %d out of order: %+v", i+1, next)
		}
		if next.XOffset != 0 || next.Column != 0 {
			t.Fatalf("tile %d has horizontal offset: %+v", i+1, next)
		}
	}
}

func TestSplit_Idempotent(t *testing.T) {
	a, err := Split(794, 5000, A4)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	b, err := Split(794, 5000, A4)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("layouts differ:\n%+v\n%+v", a, b)
	}
}

func TestSplit_Boundaries(t *testing.T) {
	tests := []struct {
		name   string
		height int
		want   int
	}{
		{"exactly one page", A4.Height, 1},
		{"one pixel over", A4.Height + 1, 2},
		{"single pixel", 1, 1},
		{"exactly three pages", 3 * A4.Height, 3},
		{"just past three pages", 3*A4.Height + 1, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout, err := Split(794, tt.height, A4)
			if err != nil {
				t.Fatalf("Split: %v", err)
			}
			if layout.PageCount() != tt.want {
				t.Fatalf("got %d pages, want %d", layout.PageCount(), tt.want)
			}
		})
	}
}

func TestSplit_Scenarios(t *testing.T) {
	layout, err := Split(794, 2246, PageSize{Width: 794, Height: 1123})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	want := []Tile{
		{Index: 0, Row: 0, YOffset: 0},
		{Index: 1, Row: 1, YOffset: -1123},
	}
	if !reflect.DeepEqual(layout.Tiles, want) {
		t.Fatalf("tiles = %+v, want %+v", layout.Tiles, want)
	}

	layout, err = Split(794, 1123, A4)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if !reflect.DeepEqual(layout.Tiles, []Tile{{}}) {
		t.Fatalf("tiles = %+v", layout.Tiles)
	}

	layout, err = Split(794, 3369, A4)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if layout.PageCount() != 3 {
		t.Fatalf("3x1123 gave %d pages", layout.PageCount())
	}
}

func TestSplit_MismatchedWidthIsAccepted(t *testing.T) {
	layout, err := Split(1000, 2000, A4)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if layout.PageCount() != 2 || layout.ImageWidth != 1000 {
		t.Fatalf("unexpected layout %+v", layout)
	}
}

func TestSplit_RejectsNonPositive(t *testing.T) {
	cases := []struct {
		w, h int
		page PageSize
	}{
		{794, 0, A4},
		{794, -5, A4},
		{0, 100, A4},
		{794, 100, PageSize{Width: 794, Height: 0}},
		{794, 100, PageSize{Width: -1, Height: 1123}},
	}
	for _, c := range cases {
		if _, err := Split(c.w, c.h, c.page); !errors.Is(err, ErrInvalidDimension) {
			t.Fatalf("Split(%d, %d, %+v) err = %v, want ErrInvalidDimension", c.w, c.h, c.page, err)
		}
	}
}

func TestTileImage_UsesReportedSize(t *testing.T) {
	layout, err := TileImage(RenderedImage{Width: 794, Height: 2246, Format: "png"}, A4)
	if err != nil {
		t.Fatalf("TileImage: %v", err)
	}
	if layout.PageCount() != 2 {
		t.Fatalf("got %d pages", layout.PageCount())
	}
}

func TestPageSizeConversions(t *testing.T) {
	if got := PageSizeFromMillimetres(210, 297, Density); got != A4 {
		t.Fatalf("A4 from millimetres = %+v, want %+v", got, A4)
	}
	if got := PageSizeFromInches(8.5, 11, Density); got != (PageSize{Width: 816, Height: 1056}) {
		t.Fatalf("letter from inches = %+v", got)
	}
}

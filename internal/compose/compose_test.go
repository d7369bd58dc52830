package compose

import (
	"errors"
	"strings"
	"testing"

	"webpdf/internal/imaging"
	"webpdf/internal/tiler"
)

func TestTiledDocument_OneContainerPerTile(t *testing.T) {
	layout, err := tiler.Split(794, 2246, tiler.A4)
	if err != nil {
		t.Fatalf("tile: %v", err)
	}
	img := tiler.RenderedImage{Width: 794, Height: 2246, Format: "png", Data: []byte("\x89PNG")}

	doc, err := TiledDocument(layout, img)
	if err != nil {
		t.Fatalf("TiledDocument: %v", err)
	}

	if got := strings.Count(doc, `class="page"`); got != 2 {
		t.Fatalf("page containers = %d, want 2", got)
	}
	for _, want := range []string{
		"background-position: 0px 0px;",
		"background-position: 0px -1123px;",
		"size: 794px 1123px;",
		"background-size: 794px 2246px;",
		"url('data:image/png;base64,iVBORw==')",
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("document missing %q:\n%s", want, doc)
		}
	}
	if strings.Index(doc, `data-page="0"`) > strings.Index(doc, `data-page="1"`) {
		t.Fatal("tiles out of order")
	}
}

func TestTiledDocument_Errors(t *testing.T) {
	if _, err := TiledDocument(tiler.Layout{}, tiler.RenderedImage{Data: []byte{1}}); !errors.Is(err, ErrEmptyLayout) {
		t.Fatalf("err = %v, want ErrEmptyLayout", err)
	}

	layout, _ := tiler.Split(794, 100, tiler.A4)
	if _, err := TiledDocument(layout, tiler.RenderedImage{Format: "png"}); !errors.Is(err, imaging.ErrEmptyImage) {
		t.Fatalf("err = %v, want ErrEmptyImage", err)
	}
	if _, err := TiledDocument(layout, tiler.RenderedImage{Format: "bmp", Data: []byte{1}}); !errors.Is(err, imaging.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

package compose

import (
	"errors"
	"fmt"
	"html/template"
	"strings"

	"webpdf/internal/imaging"
	"webpdf/internal/tiler"
)

var tiledDocument = template.Must(template.New("tiled").Parse(tiledDocumentTemplate))

// ErrEmptyLayout is returned when a layout has no tiles to compose.
var ErrEmptyLayout = errors.New("layout has no tiles")

type documentData struct {
	Page        tiler.PageSize
	ImageWidth  int
	ImageHeight int
	Background  template.CSS
	Tiles       []tiler.Tile
}

// TiledDocument renders the markup that reassembles img as layout.PageCount()
// pages. The image is embedded as a data URL.
func TiledDocument(layout tiler.Layout, img tiler.RenderedImage) (string, error) {
	if layout.PageCount() == 0 {
		return "", ErrEmptyLayout
	}
	if len(img.Data) == 0 {
		return "", fmt.Errorf("compose tiled document: %w", imaging.ErrEmptyImage)
	}

	dataURL, err := imaging.DataURL(img.Format, img.Data)
	if err != nil {
		return "", fmt.Errorf("compose tiled document: %w", err)
	}

	data := documentData{
		Page:        layout.Page,
		ImageWidth:  layout.ImageWidth,
		ImageHeight: layout.ImageHeight,
		Background:  template.CSS("url('" + dataURL + "')"),
		Tiles:       layout.Tiles,
	}

	var b strings.Builder
	b.Grow(len(dataURL) + 2048 + 160*len(layout.Tiles))
	if err := tiledDocument.Execute(&b, data); err != nil {
		return "", fmt.Errorf("execute tiled template: %w", err)
	}
	return b.String(), nil
}

package tiler

import (
	"errors"
	"fmt"
	"math"
)

// Density is the pixels-per-inch ratio used to turn paper sizes into pixels.
const Density = 96

// ErrInvalidDimension is returned for non-positive image or page dimensions.
var ErrInvalidDimension = errors.New("invalid dimension")

// PageSize is a fixed output page geometry in pixels.
type PageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// A4 is 210mm x 297mm (8.27in x 11.69in) at 96 DPI.
var A4 = PageSize{Width: 794, Height: 1123}

// PageSizeFromInches converts physical paper dimensions into pixels at dpi.
func PageSizeFromInches(width, height float64, dpi int) PageSize {
	return PageSize{
		Width:  int(math.Round(width * float64(dpi))),
		Height: int(math.Round(height * float64(dpi))),
	}
}

// PageSizeFromMillimetres converts metric paper dimensions into pixels at dpi.
func PageSizeFromMillimetres(width, height float64, dpi int) PageSize {
	return PageSizeFromInches(width/25.4, height/25.4, dpi)
}

// WidthInches reports the page width in inches at Density.
func (p PageSize) WidthInches() float64 {
	return float64(p.Width) / Density
}

// HeightInches reports the page height in inches at Density.
func (p PageSize) HeightInches() float64 {
	return float64(p.Height) / Density
}

// RenderedImage is a rasterised snapshot of a rendered page.
type RenderedImage struct {
	Width  int
	Height int
	Format string
	Data   []byte
}

// Tile is one vertical slice of a captured image and maps to one output page.
// Offsets are background-position style: the image is shifted up by YOffset.
type Tile struct {
	Index   int `json:"index"`
	Row     int `json:"row"`
	Column  int `json:"column"`
	XOffset int `json:"x_offset"`
	YOffset int `json:"y_offset"`
}

// Layout is the ordered set of tiles needed to reassemble an image as pages.
type Layout struct {
	Page        PageSize `json:"page"`
	ImageWidth  int      `json:"image_width"`
	ImageHeight int      `json:"image_height"`
	Tiles       []Tile   `json:"tiles"`
}

// PageCount returns the number of output pages.
func (l Layout) PageCount() int {
	return len(l.Tiles)
}

// Split slices an image of imageWidth x imageHeight into pages of the given size,
// stacked vertically in a single column. A width that differs from page.Width is
// tiled anyway; the caller is expected to force the page width before capture.
func Split(imageWidth, imageHeight int, page PageSize) (Layout, error) {
	if imageWidth <= 0 || imageHeight <= 0 {
		return Layout{}, fmt.Errorf("%w: image %dx%d", ErrInvalidDimension, imageWidth, imageHeight)
	}
	if page.Width <= 0 || page.Height <= 0 {
		return Layout{}, fmt.Errorf("%w: page %dx%d", ErrInvalidDimension, page.Width, page.Height)
	}

	rows := (imageHeight + page.Height - 1) / page.Height
	tiles := make([]Tile, rows)
	for row := range rows {
		tiles[row] = Tile{
			Index:   row,
			Row:     row,
			Column:  0,
			XOffset: 0,
			YOffset: -row * page.Height,
		}
	}

	return Layout{
		Page:        page,
		ImageWidth:  imageWidth,
		ImageHeight: imageHeight,
		Tiles:       tiles,
	}, nil
}

// TileImage tiles img using its reported dimensions.
func TileImage(img RenderedImage, page PageSize) (Layout, error) {
	return Split(img.Width, img.Height, page)
}

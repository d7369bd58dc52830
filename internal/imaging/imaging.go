package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"strings"

	_ "golang.org/x/image/webp"

	"webpdf/internal/tiler"
)

var (
	ErrEmptyImage        = errors.New("image is empty")
	ErrInvalidImage      = errors.New("invalid image")
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

var mimeTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"webp": "image/webp",
}

// Decode reads the dimensions and format of an encoded screenshot without
// decoding its pixels.
func Decode(data []byte) (tiler.RenderedImage, error) {
	if len(data) == 0 {
		return tiler.RenderedImage{}, ErrEmptyImage
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return tiler.RenderedImage{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if _, ok := mimeTypes[format]; !ok {
		return tiler.RenderedImage{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return tiler.RenderedImage{}, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidImage, cfg.Width, cfg.Height)
	}
	return tiler.RenderedImage{
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: format,
		Data:   data,
	}, nil
}

// MIMEType returns the media type for a decoded format name.
func MIMEType(format string) (string, error) {
	mime, ok := mimeTypes[strings.ToLower(format)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return mime, nil
}

// DataURL embeds data as a base64 data URL.
func DataURL(format string, data []byte) (string, error) {
	mime, err := MIMEType(format)
	if err != nil {
		return "", err
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Probe round-trips a 1x1 image through the codec registry. It is run once at
// startup as the imaging capability check.
func Probe() error {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.White)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode probe image: %w", err)
	}
	decoded, err := Decode(buf.Bytes())
	if err != nil {
		return fmt.Errorf("decode probe image: %w", err)
	}
	if decoded.Width != 1 || decoded.Height != 1 {
		return fmt.Errorf("probe image decoded as %dx%d", decoded.Width, decoded.Height)
	}
	return nil
}

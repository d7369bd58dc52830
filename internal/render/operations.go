package render

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"webpdf/internal/tiler"
)

const (
	initialViewportWidth  = 1920
	initialViewportHeight = 1080
	measureViewportHeight = 2000
	paginatedViewport     = 5000
	captureHeightBuffer   = 100
	maxResizeRounds       = 3
	singlePageExtraInches = 0.2
)

// Capture is a screenshot of a page forced to a fixed width.
type Capture struct {
	Screenshot    []byte
	Format        string
	Width         int
	Height        int
	ContentHeight int
	Clipped       bool
}

// PrintHTML renders an HTML document onto a single page sized to its content.
func (b *Browser) PrintHTML(ctx context.Context, html string) ([]byte, error) {
	var pdf []byte
	err := b.withPage(ctx, nil, func(page *rod.Page) error {
		if err := b.load(ctx, page, html); err != nil {
			return err
		}

		width, height, err := b.settledSize(ctx, page)
		if err != nil {
			return err
		}
		if err := page.Context(ctx).SetViewport(viewportOf(width, height)); err != nil {
			return fmt.Errorf("resize viewport: %w", err)
		}
		if err := nextFrames(ctx, page); err != nil {
			return err
		}
		b.logger.Info("document measured", slog.Int("width", width), slog.Int("height", height))

		pdf, err = exportPDF(ctx, page, &proto.PagePrintToPDF{
			PrintBackground:   true,
			PaperWidth:        float64Ptr(float64(width) / tiler.Density),
			PaperHeight:       float64Ptr(float64(height)/tiler.Density + singlePageExtraInches),
			MarginTop:         float64Ptr(0),
			MarginBottom:      float64Ptr(0),
			MarginLeft:        float64Ptr(0),
			MarginRight:       float64Ptr(0),
			PreferCSSPageSize: false,
		})
		return err
	})
	return pdf, err
}

// PrintURL renders a web page at the width of size onto one tall page.
func (b *Browser) PrintURL(ctx context.Context, target string, size tiler.PageSize) ([]byte, error) {
	var pdf []byte
	err := b.withPage(ctx, nil, func(page *rod.Page) error {
		if err := b.open(ctx, page, target); err != nil {
			return err
		}
		b.waitFonts(ctx, page)

		p := page.Context(ctx)
		if err := p.AddStyleTag("", singlePageCSS(size.Width)); err != nil {
			return fmt.Errorf("inject single page css: %w", err)
		}
		if err := p.SetViewport(viewportOf(size.Width, measureViewportHeight)); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}

		height, err := b.settledHeight(ctx, page)
		if err != nil {
			return err
		}
		if err := p.SetViewport(viewportOf(size.Width, height+captureHeightBuffer)); err != nil {
			return fmt.Errorf("resize viewport: %w", err)
		}
		if height, err = b.settledHeight(ctx, page); err != nil {
			return err
		}
		b.logger.Info("page measured", slog.Int("height", height))

		heightInches := float64(height) / tiler.Density
		if heightInches < 1 {
			heightInches = size.HeightInches()
		}

		pdf, err = exportPDF(ctx, page, &proto.PagePrintToPDF{
			PrintBackground:   true,
			PaperWidth:        float64Ptr(size.WidthInches()),
			PaperHeight:       float64Ptr(heightInches + singlePageExtraInches),
			MarginTop:         float64Ptr(0),
			MarginBottom:      float64Ptr(0),
			MarginLeft:        float64Ptr(0),
			MarginRight:       float64Ptr(0),
			PreferCSSPageSize: false,
			Scale:             float64Ptr(1),
		})
		return err
	})
	return pdf, err
}

// PrintURLPaginated lets Chromium break a web page into pages of size.
func (b *Browser) PrintURLPaginated(ctx context.Context, target string, size tiler.PageSize) ([]byte, error) {
	var pdf []byte
	err := b.withPage(ctx, nil, func(page *rod.Page) error {
		if err := b.open(ctx, page, target); err != nil {
			return err
		}
		b.waitFonts(ctx, page)

		p := page.Context(ctx)
		if err := p.AddStyleTag("", paginatedCSS(size.Width, size.Height)); err != nil {
			return fmt.Errorf("inject paginated css: %w", err)
		}
		if err := p.SetViewport(viewportOf(size.Width, paginatedViewport)); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}

		stableCtx, cancel := context.WithTimeout(ctx, b.opts.SettleTimeout)
		defer cancel()
		if err := page.Context(stableCtx).WaitDOMStable(300*time.Millisecond, 0); err != nil && ctx.Err() == nil {
			b.logger.Warn("dom did not stabilise, continuing", slog.Any("error", err))
		}

		var err error
		pdf, err = exportPDF(ctx, page, &proto.PagePrintToPDF{
			PrintBackground:   true,
			PaperWidth:        float64Ptr(size.WidthInches()),
			PaperHeight:       float64Ptr(size.HeightInches()),
			MarginTop:         float64Ptr(0),
			MarginBottom:      float64Ptr(0),
			MarginLeft:        float64Ptr(0),
			MarginRight:       float64Ptr(0),
			PreferCSSPageSize: true,
			Scale:             float64Ptr(1),
		})
		return err
	})
	return pdf, err
}

// CaptureURL screenshots a web page forced to size.Width. The captured height
// is the measured content height after limit has been applied.
func (b *Browser) CaptureURL(ctx context.Context, target string, size tiler.PageSize, limit tiler.HeightLimit) (Capture, error) {
	var capture Capture
	err := b.withPage(ctx, viewportOf(initialViewportWidth, initialViewportHeight), func(page *rod.Page) error {
		if err := b.open(ctx, page, target); err != nil {
			return err
		}

		p := page.Context(ctx)
		if err := p.AddStyleTag("", captureCSS(size.Width)); err != nil {
			return fmt.Errorf("inject capture css: %w", err)
		}
		if err := p.SetViewport(viewportOf(size.Width, measureViewportHeight)); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
		b.waitImages(ctx, page)
		b.waitFonts(ctx, page)

		measure := func(ctx context.Context) (int, error) {
			return b.settledHeight(ctx, page)
		}
		resize := func(h int) error {
			if err := p.SetViewport(viewportOf(size.Width, h)); err != nil {
				return fmt.Errorf("resize viewport: %w", err)
			}
			return nextFrames(ctx, page)
		}
		contentHeight, height, clipped, err := fitViewport(ctx, measure, resize, limit)
		if err != nil {
			return err
		}
		if clipped {
			b.logger.Warn("content clipped to maximum height",
				slog.Int("content_height", contentHeight),
				slog.Int("max_height", height),
			)
		}
		b.logger.Info("content measured", slog.Int("width", size.Width), slog.Int("height", height))

		shot, err := p.Screenshot(false, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
			Clip: &proto.PageViewport{
				X:      0,
				Y:      0,
				Width:  float64(size.Width),
				Height: float64(height),
				Scale:  1,
			},
			CaptureBeyondViewport: true,
		})
		if err != nil {
			return fmt.Errorf("capture screenshot: %w", err)
		}
		if len(shot) == 0 {
			return ErrEmptyCapture
		}

		capture = Capture{
			Screenshot:    shot,
			Format:        "png",
			Width:         size.Width,
			Height:        height,
			ContentHeight: contentHeight,
			Clipped:       clipped,
		}
		return nil
	})
	return capture, err
}

// fitViewport measures the content, applies limit and grows the viewport to
// the result. Lazy content can grow the page once the viewport is taller, so
// the height is measured again until it stops growing or maxResizeRounds is
// reached. The returned height is always the one the viewport was sized for.
func fitViewport(ctx context.Context, measure func(context.Context) (int, error), resize func(height int) error, limit tiler.HeightLimit) (contentHeight, height int, clipped bool, err error) {
	if contentHeight, err = measure(ctx); err != nil {
		return 0, 0, false, err
	}
	for round := 0; ; round++ {
		if height, clipped, err = limit.Apply(contentHeight); err != nil {
			return 0, 0, false, err
		}
		if err = resize(height + captureHeightBuffer); err != nil {
			return 0, 0, false, err
		}
		if clipped || round == maxResizeRounds-1 {
			return contentHeight, height, clipped, nil
		}
		next, err := measure(ctx)
		if err != nil {
			return 0, 0, false, err
		}
		if next <= contentHeight {
			return contentHeight, height, clipped, nil
		}
		contentHeight = next
	}
}

// PrintDocument prints composed markup with the CSS page size of size.
func (b *Browser) PrintDocument(ctx context.Context, html string, size tiler.PageSize) ([]byte, error) {
	var pdf []byte
	err := b.withPage(ctx, viewportOf(size.Width, size.Height), func(page *rod.Page) error {
		if err := b.load(ctx, page, html); err != nil {
			return fmt.Errorf("load composed document: %w", err)
		}

		waitCtx, cancel := context.WithTimeout(ctx, b.opts.SettleTimeout)
		defer cancel()
		res, err := page.Context(waitCtx).Eval(waitBackgroundScript)
		switch {
		case err != nil && ctx.Err() == nil:
			b.logger.Warn("waiting for page image failed, continuing", slog.Any("error", err))
		case err == nil && !res.Value.Bool():
			return fmt.Errorf("decode composed page image: %w", ErrEmptyCapture)
		}

		pdf, err = exportPDF(ctx, page, &proto.PagePrintToPDF{
			PrintBackground:   true,
			PaperWidth:        float64Ptr(size.WidthInches()),
			PaperHeight:       float64Ptr(size.HeightInches()),
			MarginTop:         float64Ptr(0),
			MarginBottom:      float64Ptr(0),
			MarginLeft:        float64Ptr(0),
			MarginRight:       float64Ptr(0),
			PreferCSSPageSize: true,
		})
		return err
	})
	return pdf, err
}

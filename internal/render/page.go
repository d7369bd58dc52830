package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const (
	networkIdle    = 500 * time.Millisecond
	settleInterval = 250 * time.Millisecond
)

// open navigates page to target and waits for the document, the load event
// and network idle. Idle is best-effort: pages that keep polling continue
// once the navigation timeout has passed.
func (b *Browser) open(ctx context.Context, page *rod.Page, target string) error {
	navCtx, cancel := context.WithTimeout(ctx, b.opts.NavigationTimeout)
	defer cancel()
	nav := page.Context(navCtx)

	var document *proto.NetworkResponse
	waitDocument := nav.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument {
			return false
		}
		document = e.Response
		return true
	})
	waitIdle := nav.WaitRequestIdle(networkIdle, nil, nil, nil)

	b.logger.Info("navigating", slog.String("url", target))
	if err := nav.Navigate(target); err != nil {
		return navigationError(target, err, navCtx)
	}
	waitDocument()

	if document == nil {
		if navCtx.Err() != nil && ctx.Err() == nil {
			return &NavigationError{URL: target, Kind: NavigationTimedOut, Reason: "timed out waiting for document", Err: navCtx.Err()}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return &NavigationError{URL: target, Kind: NavigationNoResponse}
	}
	if document.Status >= 400 {
		return &NavigationError{URL: target, Kind: NavigationHTTPStatus, Status: document.Status}
	}

	if err := nav.WaitLoad(); err != nil {
		return navigationError(target, err, navCtx)
	}
	waitIdle()
	if navCtx.Err() != nil && ctx.Err() == nil {
		b.logger.Warn("network did not go idle, continuing", slog.String("url", target))
	}
	return ctx.Err()
}

func navigationError(target string, err error, navCtx context.Context) error {
	var rodNav *rod.NavigationError
	reason := err.Error()
	if errors.As(err, &rodNav) {
		reason = rodNav.Reason
	}
	kind := classifyNavigation(reason)
	if navCtx.Err() != nil {
		kind = NavigationTimedOut
	}
	return &NavigationError{URL: target, Kind: kind, Reason: reason, Err: err}
}

// load replaces the page document with html and waits for it to settle.
func (b *Browser) load(ctx context.Context, page *rod.Page, html string) error {
	loadCtx, cancel := context.WithTimeout(ctx, b.opts.NavigationTimeout)
	defer cancel()
	p := page.Context(loadCtx)

	waitIdle := p.WaitRequestIdle(networkIdle, nil, nil, nil)
	if err := p.SetDocumentContent(html); err != nil {
		return fmt.Errorf("set document content: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	waitIdle()
	return ctx.Err()
}

func evalInt(ctx context.Context, page *rod.Page, js string, args ...any) (int, error) {
	res, err := page.Context(ctx).Eval(js, args...)
	if err != nil {
		return 0, fmt.Errorf("eval: %w", err)
	}
	return res.Value.Int(), nil
}

// settledHeight polls the content height until two readings agree. When the
// settle timeout passes first, the latest positive reading is used.
func (b *Browser) settledHeight(ctx context.Context, page *rod.Page) (int, error) {
	var height int
	cond := stableValue(func(ctx context.Context) (int, error) {
		return evalInt(ctx, page, contentHeightScript)
	}, &height)

	err := WaitUntil(ctx, settleInterval, b.opts.SettleTimeout, cond)
	switch {
	case err == nil:
	case errors.Is(err, ErrTimeout) && height > 0:
		b.logger.Warn("content height did not settle, using latest reading", slog.Int("height", height))
	default:
		return 0, fmt.Errorf("measure content height: %w", err)
	}
	if height <= 0 {
		return 0, ErrNoContent
	}
	return height, nil
}

// settledSize is settledHeight for documents whose width also varies.
func (b *Browser) settledSize(ctx context.Context, page *rod.Page) (width, height int, err error) {
	cond := stableValue(func(ctx context.Context) (int, error) {
		res, err := page.Context(ctx).Eval(contentSizeScript)
		if err != nil {
			return 0, fmt.Errorf("eval: %w", err)
		}
		width = res.Value.Get("width").Int()
		return res.Value.Get("height").Int(), nil
	}, &height)

	err = WaitUntil(ctx, settleInterval, b.opts.SettleTimeout, cond)
	switch {
	case err == nil:
	case errors.Is(err, ErrTimeout) && height > 0:
		b.logger.Warn("content size did not settle, using latest reading", slog.Int("width", width), slog.Int("height", height))
	default:
		return 0, 0, fmt.Errorf("measure content size: %w", err)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, ErrNoContent
	}
	return width, height, nil
}

// waitImages waits for <img> elements; failures are logged, not returned.
func (b *Browser) waitImages(ctx context.Context, page *rod.Page) {
	waitCtx, cancel := context.WithTimeout(ctx, b.opts.SettleTimeout+b.opts.ImageTimeout)
	defer cancel()
	failed, err := evalInt(waitCtx, page, waitImagesScript, b.opts.ImageTimeout.Milliseconds())
	if err != nil {
		b.logger.Warn("waiting for images failed, continuing", slog.Any("error", err))
		return
	}
	if failed > 0 {
		b.logger.Warn("some images did not load", slog.Int("count", failed))
	}
}

func (b *Browser) waitFonts(ctx context.Context, page *rod.Page) {
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := page.Context(waitCtx).Eval(waitFontsScript); err != nil {
		b.logger.Warn("document.fonts.ready wait failed, continuing", slog.Any("error", err))
	}
}

func nextFrames(ctx context.Context, page *rod.Page) error {
	_, err := page.Context(ctx).Eval(`() => new Promise(resolve =>
  requestAnimationFrame(() => requestAnimationFrame(() => resolve(true))))`)
	if err != nil {
		return fmt.Errorf("wait for animation frames: %w", err)
	}
	return nil
}

func exportPDF(ctx context.Context, page *rod.Page, params *proto.PagePrintToPDF) ([]byte, error) {
	reader, err := page.Context(ctx).PDF(params)
	if err != nil {
		return nil, fmt.Errorf("export pdf: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf bytes: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyPDF
	}
	return data, nil
}

func float64Ptr(value float64) *float64 {
	return &value
}

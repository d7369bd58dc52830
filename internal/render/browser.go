package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"webpdf/internal/imaging"
)

// Options configures the headless browser.
type Options struct {
	BrowserBin        string
	NoSandbox         bool
	IgnoreHTTPSErrors bool
	MaxPages          int
	NavigationTimeout time.Duration
	SettleTimeout     time.Duration
	ImageTimeout      time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxPages <= 0 {
		o.MaxPages = 1
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 60 * time.Second
	}
	if o.SettleTimeout <= 0 {
		o.SettleTimeout = 10 * time.Second
	}
	if o.ImageTimeout <= 0 {
		o.ImageTimeout = 5 * time.Second
	}
	return o
}

// Browser owns one Chromium process. Every conversion runs in its own
// incognito context; at most Options.MaxPages run at once.
type Browser struct {
	opts    Options
	logger  *slog.Logger
	launch  *launcher.Launcher
	browser *rod.Browser
	slots   chan struct{}

	closeOnce sync.Once
}

// Launch starts Chromium and connects to it.
func Launch(opts Options, logger *slog.Logger) (_ *Browser, err error) {
	opts = opts.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	launch := launcher.New().
		Headless(true).
		NoSandbox(opts.NoSandbox)
	defer func() {
		if err != nil {
			launch.Cleanup()
		}
	}()

	if opts.BrowserBin != "" {
		launch = launch.Bin(opts.BrowserBin)
	} else if path, ok := launcher.LookPath(); ok {
		launch = launch.Bin(path)
	}

	controlURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	if opts.IgnoreHTTPSErrors {
		if err := browser.IgnoreCertErrors(true); err != nil {
			_ = browser.Close()
			return nil, fmt.Errorf("ignore cert errors: %w", err)
		}
	}

	logger.Info("browser ready", slog.Int("max_pages", opts.MaxPages))
	return &Browser{
		opts:    opts,
		logger:  logger,
		launch:  launch,
		browser: browser,
		slots:   make(chan struct{}, opts.MaxPages),
	}, nil
}

// Close shuts Chromium down. It is safe to call more than once.
func (b *Browser) Close() error {
	if b == nil {
		return nil
	}
	var err error
	b.closeOnce.Do(func() {
		err = b.browser.Close()
		b.launch.Cleanup()
	})
	return err
}

// Capabilities is the result of the startup dependency check.
type Capabilities struct {
	Browser      bool   `json:"browser"`
	Imaging      bool   `json:"imaging"`
	BrowserError string `json:"browser_error,omitempty"`
	ImagingError string `json:"imaging_error,omitempty"`
}

// Ready reports whether every capability is available.
func (c Capabilities) Ready() bool {
	return c.Browser && c.Imaging
}

// Probe launches the browser and checks the image codecs once. A nil Browser
// is returned when Chromium cannot be started; the service then runs degraded.
func Probe(opts Options, logger *slog.Logger) (*Browser, Capabilities) {
	if logger == nil {
		logger = slog.Default()
	}
	var caps Capabilities

	if err := imaging.Probe(); err != nil {
		logger.Error("imaging capability unavailable", slog.Any("error", err))
		caps.ImagingError = err.Error()
	} else {
		caps.Imaging = true
	}

	browser, err := Launch(opts, logger)
	if err != nil {
		logger.Error("browser capability unavailable", slog.Any("error", err))
		caps.BrowserError = err.Error()
		return nil, caps
	}
	caps.Browser = true
	return browser, caps
}

// withPage runs fn on a fresh page inside an incognito context bound to ctx.
func (b *Browser) withPage(ctx context.Context, viewport *proto.EmulationSetDeviceMetricsOverride, fn func(page *rod.Page) error) error {
	if b == nil || b.browser == nil {
		return ErrUnavailable
	}

	select {
	case b.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-b.slots }()

	incognito, err := b.browser.Incognito()
	if err != nil {
		return fmt.Errorf("create browser context: %w", err)
	}
	defer func() {
		_ = incognito.Close()
	}()

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	defer func() {
		_ = page.Close()
	}()

	if viewport != nil {
		if err := page.SetViewport(viewport); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
	}

	if err := fn(page); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return err
	}
	return nil
}

func viewportOf(width, height int) *proto.EmulationSetDeviceMetricsOverride {
	return &proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	}
}

package convert

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"webpdf/internal/compose"
	"webpdf/internal/imaging"
	"webpdf/internal/metrics"
	"webpdf/internal/pdfcheck"
	"webpdf/internal/render"
	"webpdf/internal/tiler"
)

// Kind names a conversion pipeline.
type Kind string

const (
	KindHTML         Kind = "html"
	KindHTMLBase64   Kind = "html_base64"
	KindURL          Kind = "url"
	KindURLA4        Kind = "url_a4"
	KindURLPaginated Kind = "url_paginated"
)

const (
	widthTolerance   = 10
	largeDocumentMiB = 50
)

// Engine is the browser collaborator. *render.Browser implements it.
type Engine interface {
	PrintHTML(ctx context.Context, html string) ([]byte, error)
	PrintURL(ctx context.Context, target string, size tiler.PageSize) ([]byte, error)
	PrintURLPaginated(ctx context.Context, target string, size tiler.PageSize) ([]byte, error)
	CaptureURL(ctx context.Context, target string, size tiler.PageSize, limit tiler.HeightLimit) (render.Capture, error)
	PrintDocument(ctx context.Context, html string, size tiler.PageSize) ([]byte, error)
}

// Cache stores finished PDFs by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
}

// Filenames are the download names returned per pipeline.
type Filenames struct {
	Document  string
	A4        string
	Paginated string
}

// Options tune the conversion pipelines.
type Options struct {
	Page      tiler.PageSize
	Limit     tiler.HeightLimit
	Timeout   time.Duration
	Filenames Filenames
}

func (o Options) withDefaults() Options {
	if o.Page.Width <= 0 || o.Page.Height <= 0 {
		o.Page = tiler.A4
	}
	if o.Limit.Max <= 0 {
		o.Limit.Max = tiler.DefaultMaxHeight
	}
	if o.Limit.Policy == "" {
		o.Limit.Policy = tiler.OverflowClip
	}
	if o.Filenames.Document == "" {
		o.Filenames.Document = "documento.pdf"
	}
	if o.Filenames.A4 == "" {
		o.Filenames.A4 = "web_a4.pdf"
	}
	if o.Filenames.Paginated == "" {
		o.Filenames.Paginated = "Relatorio_E_MO_TI_VE.pdf"
	}
	return o
}

// Request is one conversion. Input is HTML, base64 HTML or a URL depending on Kind.
type Request struct {
	Kind  Kind
	Input string
}

// Result is a finished PDF.
type Result struct {
	Kind     Kind
	PDF      []byte
	Filename string
	Pages    int
	Clipped  bool
	Cached   bool
}

// Service sequences the browser, imaging and tiling steps for each pipeline.
type Service struct {
	engine Engine
	caps   render.Capabilities
	cache  Cache
	opts   Options
	logger *slog.Logger
}

// NewService builds a Service. engine may be nil when caps reports the
// browser unavailable; cache may be nil to disable caching.
func NewService(engine Engine, caps render.Capabilities, cache Cache, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		engine: engine,
		caps:   caps,
		cache:  cache,
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

// Capabilities returns the startup dependency check result.
func (s *Service) Capabilities() render.Capabilities {
	return s.caps
}

func (s *Service) ConvertHTML(ctx context.Context, html string) (*Result, error) {
	return s.Convert(ctx, Request{Kind: KindHTML, Input: html})
}

func (s *Service) ConvertHTMLBase64(ctx context.Context, encoded string) (*Result, error) {
	return s.Convert(ctx, Request{Kind: KindHTMLBase64, Input: encoded})
}

func (s *Service) ConvertURL(ctx context.Context, target string) (*Result, error) {
	return s.Convert(ctx, Request{Kind: KindURL, Input: target})
}

func (s *Service) ConvertURLA4(ctx context.Context, target string) (*Result, error) {
	return s.Convert(ctx, Request{Kind: KindURLA4, Input: target})
}

func (s *Service) ConvertURLPaginated(ctx context.Context, target string) (*Result, error) {
	return s.Convert(ctx, Request{Kind: KindURLPaginated, Input: target})
}

// Convert validates req, serves it from cache when possible and otherwise runs
// the pipeline for req.Kind.
func (s *Service) Convert(ctx context.Context, req Request) (result *Result, err error) {
	start := time.Now()
	log := s.logger.With(slog.String("kind", string(req.Kind)))
	defer func() {
		metrics.ObserveConversion(string(req.Kind), err, time.Since(start))
		if err != nil {
			log.Error("conversion failed", slog.Int("status", StatusOf(err)), slog.Any("error", err))
			return
		}
		metrics.ObservePages(string(req.Kind), result.Pages)
		log.Info("conversion completed",
			slog.Int("pages", result.Pages),
			slog.Int("bytes", len(result.PDF)),
			slog.Bool("cached", result.Cached),
			slog.Bool("clipped", result.Clipped),
			slog.Duration("elapsed", time.Since(start)),
		)
	}()

	input, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	if !s.caps.Browser || s.engine == nil {
		return nil, classify("rendering", render.ErrUnavailable)
	}
	if !s.caps.Imaging && req.Kind == KindURLA4 {
		return nil, &Error{Status: http.StatusServiceUnavailable, Message: "image processing is not available", Err: imaging.ErrUnsupportedFormat}
	}

	key := cacheKey(req.Kind, input)
	if cached, ok := s.cached(ctx, key); ok {
		return &Result{
			Kind:     req.Kind,
			PDF:      cached,
			Filename: s.filename(req.Kind),
			Pages:    s.countPages(cached),
			Cached:   true,
		}, nil
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	switch req.Kind {
	case KindHTML, KindHTMLBase64:
		result, err = s.convertHTML(ctx, input)
	case KindURL:
		result, err = s.convertURL(ctx, input)
	case KindURLA4:
		result, err = s.convertURLA4(ctx, input, log)
	case KindURLPaginated:
		result, err = s.convertURLPaginated(ctx, input)
	}
	if err != nil {
		return nil, err
	}
	result.Kind = req.Kind
	result.Filename = s.filename(req.Kind)

	if !result.Clipped {
		s.store(ctx, key, result.PDF)
	}
	return result, nil
}

// validate normalises the request input: decoded HTML or a checked URL.
func (s *Service) validate(req Request) (string, error) {
	switch req.Kind {
	case KindHTML:
		if strings.TrimSpace(req.Input) == "" {
			return "", invalidInput("html content cannot be empty")
		}
		return req.Input, nil
	case KindHTMLBase64:
		html, err := decodeBase64HTML(req.Input)
		if err != nil {
			return "", err
		}
		return html, nil
	case KindURL, KindURLA4, KindURLPaginated:
		return ValidateURL(req.Input)
	default:
		return "", invalidInput(fmt.Sprintf("unknown conversion kind %q", req.Kind))
	}
}

func decodeBase64HTML(encoded string) (string, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return "", invalidInput("html_base64 cannot be empty")
	}
	var (
		decoded []byte
		err     error
	)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if decoded, err = enc.DecodeString(encoded); err == nil {
			break
		}
	}
	if err != nil {
		return "", &Error{Status: http.StatusBadRequest, Message: "html_base64 is not valid base64", Err: errors.Join(ErrInvalidInput, err)}
	}
	if !utf8.Valid(decoded) {
		return "", invalidInput("decoded html is not valid UTF-8")
	}
	if strings.TrimSpace(string(decoded)) == "" {
		return "", invalidInput("decoded html is empty")
	}
	return string(decoded), nil
}

// ValidateURL trims raw and requires an absolute http or https URL with a host.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", invalidInput("url cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", &Error{Status: http.StatusBadRequest, Message: "url is not valid", Err: errors.Join(ErrInvalidInput, err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", invalidInput("url must use http or https")
	}
	if u.Host == "" {
		return "", invalidInput("url must include a host")
	}
	return u.String(), nil
}

func (s *Service) filename(kind Kind) string {
	switch kind {
	case KindURLA4:
		return s.opts.Filenames.A4
	case KindURLPaginated:
		return s.opts.Filenames.Paginated
	default:
		return s.opts.Filenames.Document
	}
}

func (s *Service) convertHTML(ctx context.Context, html string) (*Result, error) {
	pdf, err := s.engine.PrintHTML(ctx, html)
	if err != nil {
		return nil, classify("converting html to pdf", err)
	}
	return &Result{PDF: pdf, Pages: s.countPages(pdf)}, nil
}

func (s *Service) convertURL(ctx context.Context, target string) (*Result, error) {
	pdf, err := s.engine.PrintURL(ctx, target, s.opts.Page)
	if err != nil {
		return nil, classify("converting page to pdf", err)
	}
	return &Result{PDF: pdf, Pages: s.countPages(pdf)}, nil
}

func (s *Service) convertURLPaginated(ctx context.Context, target string) (*Result, error) {
	pdf, err := s.engine.PrintURLPaginated(ctx, target, s.opts.Page)
	if err != nil {
		return nil, classify("converting page to paginated pdf", err)
	}
	return &Result{PDF: pdf, Pages: s.countPages(pdf)}, nil
}

// convertURLA4 captures the page as one image, tiles it into fixed-size pages
// and prints the reassembled document.
func (s *Service) convertURLA4(ctx context.Context, target string, log *slog.Logger) (*Result, error) {
	page := s.opts.Page
	log = log.With(slog.String("url", target))

	capture, err := s.engine.CaptureURL(ctx, target, page, s.opts.Limit)
	if err != nil {
		return nil, classify("capturing the page", err)
	}
	metrics.ObserveCapture(capture.ContentHeight, capture.Clipped)

	img, err := imaging.Decode(capture.Screenshot)
	if err != nil {
		return nil, classify("processing the captured image", err)
	}
	log.Info("screenshot captured",
		slog.Int("width", img.Width),
		slog.Int("height", img.Height),
		slog.Float64("size_mib", mib(len(img.Data))),
	)
	if abs(img.Width-page.Width) > widthTolerance {
		log.Warn("captured width does not match page width",
			slog.Int("image_width", img.Width),
			slog.Int("page_width", page.Width),
		)
	}

	layout, err := tiler.TileImage(img, page)
	if err != nil {
		return nil, classify("tiling the captured image", err)
	}
	log.Info("image tiled", slog.Int("pages", layout.PageCount()))

	doc, err := compose.TiledDocument(layout, img)
	if err != nil {
		return nil, classify("composing the paginated document", err)
	}
	if size := mib(len(doc)); size > largeDocumentMiB {
		log.Warn("composed document is very large", slog.Float64("size_mib", size))
	}

	pdf, err := s.engine.PrintDocument(ctx, doc, page)
	if err != nil {
		return nil, classify("generating the pdf", err)
	}

	pages := layout.PageCount()
	if got, err := pdfcheck.Verify(pdf, pages); err != nil {
		metrics.PageCountMismatch()
		log.Warn("pdf page count differs from layout", slog.Int("expected", pages), slog.Any("error", err))
		if got > 0 {
			pages = got
		}
	}

	return &Result{PDF: pdf, Pages: pages, Clipped: capture.Clipped}, nil
}

func (s *Service) countPages(pdf []byte) int {
	n, err := pdfcheck.PageCount(pdf)
	if err != nil {
		s.logger.Debug("count pdf pages failed", slog.Any("error", err))
		return 0
	}
	return n
}

func mib(n int) float64 {
	return float64(n) / (1024 * 1024)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Package bootstrap wires configuration into the long-lived dependencies
// shared by the api and worker binaries.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/automaxprocs/maxprocs"

	"webpdf/internal/cache"
	"webpdf/internal/config"
	"webpdf/internal/convert"
	"webpdf/internal/render"
)

// NewLogger builds the process logger from cfg.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetMaxProcs matches GOMAXPROCS to the container CPU quota.
func SetMaxProcs(logger *slog.Logger) {
	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))
}

// RedisOptions returns go-redis options for cfg.
func RedisOptions(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// AsynqRedisOpt returns the asynq connection for cfg.
func AsynqRedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewRedis connects to Redis and pings it.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(RedisOptions(cfg))
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr(), err)
	}
	return client, nil
}

// RenderOptions maps configuration onto browser options. The page pool is
// sized from GOMAXPROCS unless set explicitly.
func RenderOptions(cfg config.RenderConfig) render.Options {
	return render.Options{
		BrowserBin:        cfg.BrowserBin,
		NoSandbox:         cfg.NoSandbox,
		IgnoreHTTPSErrors: cfg.IgnoreHTTPSErrors,
		MaxPages:          render.ResolvePoolSize(cfg.MaxPages),
		NavigationTimeout: cfg.NavigationTimeout,
		SettleTimeout:     cfg.SettleTimeout,
	}
}

// Converter probes the browser and builds the conversion service. The
// returned browser may be nil when Chromium could not be started; rdb may be
// nil when the PDF cache is disabled.
func Converter(cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (*convert.Service, *render.Browser) {
	browser, caps := render.Probe(RenderOptions(cfg.Render), logger.With(slog.String("component", "render")))

	var engine convert.Engine
	if browser != nil {
		engine = browser
	}

	var pdfCache convert.Cache
	if cfg.Cache.Enabled && rdb != nil {
		pdfCache = cache.New(rdb, cfg.Cache.TTL)
	}

	svc := convert.NewService(engine, caps, pdfCache, convert.Options{
		Limit:   cfg.Render.HeightLimit(),
		Timeout: cfg.Render.ConversionTimeout,
	}, logger.With(slog.String("component", "convert")))
	return svc, browser
}

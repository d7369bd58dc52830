package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/spf13/pflag"

	"webpdf/internal/bootstrap"
	"webpdf/internal/config"
	"webpdf/internal/jobs"
	"webpdf/internal/metrics"
	"webpdf/internal/storage"
	"webpdf/internal/tasks"
	"webpdf/internal/worker"
)

func main() {
	flags := pflag.NewFlagSet("webpdf-worker", pflag.ExitOnError)
	config.RegisterFlags(flags)
	_ = flags.Parse(os.Args[1:])

	cfg := config.MustLoad(flags)

	logger := bootstrap.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)
	bootstrap.SetMaxProcs(logger)

	if !cfg.Jobs.Enabled {
		logger.Error("the worker needs JOBS_ENABLED=true and the MinIO settings")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := bootstrap.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Error("init redis failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()

	storageClient, err := storage.NewClient(ctx, cfg.MinIO)
	if err != nil {
		logger.Error("init storage client failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	// Each task holds one browser page, so the page pool bounds concurrency.
	if cfg.Render.MaxPages <= 0 {
		cfg.Render.MaxPages = cfg.Jobs.Concurrency
	}
	svc, browser := bootstrap.Converter(cfg, redisClient, logger)
	defer func() {
		if err := browser.Close(); err != nil {
			logger.Error("close browser failed", slog.Any("error", err))
		}
	}()
	if !svc.Capabilities().Browser {
		logger.Warn("browser unavailable; queued jobs will fail until it is fixed")
	}

	server := asynq.NewServer(bootstrap.AsynqRedisOpt(cfg.Redis), asynq.Config{
		Concurrency: cfg.Jobs.Concurrency,
		Queues:      map[string]int{cfg.Jobs.Queue: 1},
		Logger:      newAsynqLogger(logger),
	})

	handler := worker.NewConvertTaskHandler(svc, storageClient, jobs.NewStore(redisClient, cfg.Jobs.ResultTTL), logger)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypePDFConvert, handler)

	if err := server.Start(mux); err != nil {
		logger.Error("worker server failed to start", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker service started",
		slog.String("redis_addr", cfg.Redis.Addr()),
		slog.String("queue", cfg.Jobs.Queue),
		slog.Int("concurrency", cfg.Jobs.Concurrency),
	)

	<-ctx.Done()
	logger.Info("shutting down worker")
	server.Shutdown()
}

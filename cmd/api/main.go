package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"webpdf/internal/api"
	"webpdf/internal/bootstrap"
	"webpdf/internal/config"
	"webpdf/internal/jobs"
	"webpdf/internal/storage"
)

func main() {
	flags := pflag.NewFlagSet("webpdf-api", pflag.ExitOnError)
	config.RegisterFlags(flags)
	_ = flags.Parse(os.Args[1:])

	cfg := config.MustLoad(flags)

	logger := bootstrap.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)
	bootstrap.SetMaxProcs(logger)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Cache.Enabled || cfg.Jobs.Enabled {
		client, err := bootstrap.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Error("init redis failed", slog.Any("error", err))
			os.Exit(1)
		}
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("close redis client failed", slog.Any("error", err))
			}
		}()
	}

	svc, browser := bootstrap.Converter(cfg, redisClient, logger)
	defer func() {
		if err := browser.Close(); err != nil {
			logger.Error("close browser failed", slog.Any("error", err))
		}
	}()

	handlers := api.Handlers{
		Health:  api.NewHealthHandler(svc.Capabilities(), cfg.Jobs.Enabled),
		Convert: api.NewConvertHandler(svc),
	}

	if cfg.Jobs.Enabled {
		storageClient, err := storage.NewClient(ctx, cfg.MinIO)
		if err != nil {
			logger.Error("init storage client failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

		asynqClient := asynq.NewClient(bootstrap.AsynqRedisOpt(cfg.Redis))
		defer asynqClient.Close()

		store := jobs.NewStore(redisClient, cfg.Jobs.ResultTTL)
		handlers.Jobs = api.NewJobHandler(store, asynqClient, storageClient, redisClient, api.JobOptions{
			Queue:        cfg.Jobs.Queue,
			MaxRetry:     cfg.Jobs.MaxRetry,
			PresignTTL:   cfg.MinIO.PresignTTL,
			SubmitPerMin: cfg.Jobs.SubmitPerMinute,
		})
		handlers.Ws = api.NewWsHandler(redisClient, store, cfg.API.AllowedOrigins)
	}

	router := api.NewRouter(cfg.API, logger)
	api.RegisterRoutes(router, cfg.API, handlers)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
		}
	}()

	logger.Info("api listening",
		slog.String("addr", server.Addr),
		slog.Bool("jobs_enabled", cfg.Jobs.Enabled),
		slog.Bool("cache_enabled", cfg.Cache.Enabled),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("api server stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("api server stopped")
}

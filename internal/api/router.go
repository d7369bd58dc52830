package api

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"webpdf/internal/api/middleware"
	"webpdf/internal/config"
	"webpdf/internal/metrics"
)

// NewRouter builds the gin engine with the shared middleware chain and the
// /metrics endpoint.
func NewRouter(cfg config.APIConfig, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.CorrelationIDMiddleware(),
		middleware.SlogLoggerMiddleware(logger),
		metrics.GinMiddleware(),
		cors.New(corsConfig(cfg.AllowedOrigins)),
		middleware.BodyLimitMiddleware(cfg.MaxBodyBytes),
	)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

func corsConfig(origins []string) cors.Config {
	conf := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-API-Key", "X-Correlation-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Page-Count", "X-Content-Clipped", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			conf.AllowAllOrigins = true
			conf.AllowCredentials = false
			return conf
		}
	}
	if len(origins) == 0 {
		conf.AllowOriginFunc = func(string) bool { return false }
		return conf
	}
	conf.AllowOrigins = origins
	return conf
}

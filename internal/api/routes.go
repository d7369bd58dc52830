package api

import (
	"github.com/gin-gonic/gin"

	"webpdf/internal/api/middleware"
	"webpdf/internal/config"
)

// Handlers groups the route handlers. Jobs and Ws are nil when asynchronous
// jobs are disabled.
type Handlers struct {
	Health  *HealthHandler
	Convert *ConvertHandler
	Jobs    *JobHandler
	Ws      *WsHandler
}

// RegisterRoutes mounts every endpoint. Conversion routes sit behind the
// optional API key and the per-client rate limit.
func RegisterRoutes(router *gin.Engine, cfg config.APIConfig, h Handlers) {
	router.GET("/", h.Health.Root)
	router.GET("/health", h.Health.Health)

	protected := []gin.HandlerFunc{middleware.APIKeyMiddleware(cfg.APIKey, cfg.APIKeyHash)}
	if cfg.RateLimitRPS > 0 {
		protected = append(protected, middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware())
	}

	convert := router.Group("", protected...)
	{
		convert.POST("/convert", h.Convert.ConvertHTML)
		convert.POST("/convert-base64", h.Convert.ConvertHTMLBase64)
		convert.POST("/convert-url", h.Convert.ConvertURL)
		convert.POST("/convert-url-a4", h.Convert.ConvertURLA4)
		convert.POST("/convert-url-paginated", h.Convert.ConvertURLPaginated)
	}

	if h.Jobs == nil {
		return
	}
	v1 := router.Group("/v1", protected...)
	{
		v1.POST("/jobs", h.Jobs.Create)
		v1.GET("/jobs/:id", h.Jobs.Get)
		v1.GET("/jobs/:id/download", h.Jobs.Download)
		if h.Ws != nil {
			v1.GET("/jobs/:id/ws", h.Ws.Watch)
		}
	}
}

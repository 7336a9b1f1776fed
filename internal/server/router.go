package server

import (
	"github.com/gin-gonic/gin"

	"github.com/telansky/multigpt/internal/handlers"
	"github.com/telansky/multigpt/internal/middleware"
	"github.com/telansky/multigpt/internal/observability"
	"github.com/telansky/multigpt/internal/platform/logger"
)

type RouterConfig struct {
	AskHandler      *handlers.AskHandler
	LocalAskHandler *handlers.LocalAskHandler
	Metrics         *observability.Metrics
	Log             *logger.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.AttachRequestID())
	r.Use(middleware.CORS())
	r.Use(middleware.Metrics(cfg.Metrics))
	r.Use(middleware.RequestLogger(cfg.Log))

	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		api.GET("/healthz", handlers.HealthCheck)

		if cfg.AskHandler != nil {
			api.POST("/ask", cfg.AskHandler.Ask)
		}
		if cfg.LocalAskHandler != nil {
			api.POST("/ask/local", cfg.LocalAskHandler.Ask)
		}
	}

	return r
}

package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/maizdemicorazon/pos-connectivity/internal/api/middleware"
)

// RoutesConfig 路由选项
type RoutesConfig struct {
	Auth           middleware.AuthConfig
	CORS           bool
	RecheckLimiter *middleware.RateLimiter
	OnRecheckLimit func(c *gin.Context)
}

// RegisterConnectivityRoutes 注册连接状态路由
func RegisterConnectivityRoutes(r gin.IRouter, h *ConnectivityHandler, cfg RoutesConfig, logger *zap.Logger) {
	if r == nil || h == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	g := r.Group("/api/v1/connectivity")
	if cfg.CORS {
		g.Use(middleware.CORS())
		h.stream.allowAnyOrigin()
		// 预检请求需要路由才能进入中间件
		g.OPTIONS("/*path", func(c *gin.Context) {})
	}
	if cfg.Auth.Enabled {
		g.Use(middleware.APIKeyAuth(cfg.Auth, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(cfg.Auth.APIKeys)))
	}

	g.GET("", h.GetSnapshot)
	g.POST("/recheck", middleware.RateLimit(cfg.RecheckLimiter, cfg.OnRecheckLimit), h.Recheck)
	g.POST("/events", h.PostEvent)
	g.GET("/history", h.GetHistory)
	g.GET("/stream", h.Stream)

	logger.Info("connectivity routes registered", zap.Int("endpoints", 5))
}

package app

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maizdemicorazon/pos-connectivity/internal/api/middleware"
	cfgpkg "github.com/maizdemicorazon/pos-connectivity/internal/config"
	"github.com/maizdemicorazon/pos-connectivity/internal/health"
	redisstorage "github.com/maizdemicorazon/pos-connectivity/internal/storage/redis"
)

// NewHealthAggregator 创建健康检查聚合器，初始包含后端连通性检查器
func NewHealthAggregator(src health.SnapshotSource, cfg cfgpkg.ConnectivityConfig) *health.Aggregator {
	return health.NewAggregator(
		health.NewBackendChecker(src, StaleAfter(cfg)),
	)
}

// StaleAfter 超过两个轮询周期（加一次超时）没有新结果视为过期；关闭轮询时不判断
func StaleAfter(cfg cfgpkg.ConnectivityConfig) time.Duration {
	if cfg.CheckInterval <= 0 {
		return 0
	}
	return 2*cfg.CheckInterval + cfg.Timeout
}

// RegisterHealthRoutes 注册健康检查HTTP路由
func RegisterHealthRoutes(r *gin.Engine, aggregator *health.Aggregator) {
	health.RegisterHTTPRoutes(r, aggregator)
}

// AddRedisChecker 添加Redis检查器到聚合器
func AddRedisChecker(aggregator *health.Aggregator, redisClient *redisstorage.Client) {
	if redisClient != nil {
		aggregator.AddChecker(health.NewRedisChecker(redisClient))
	}
}

// AddRecheckLimiterChecker 在 /health 中展示手动重检限流统计，限流本身不影响健康状态
func AddRecheckLimiterChecker(aggregator *health.Aggregator, limiter *middleware.RateLimiter) {
	if limiter == nil {
		return
	}
	aggregator.AddChecker(health.CheckerFunc{
		CheckerName: "recheck_limiter",
		Fn: func(context.Context) health.CheckResult {
			stats := limiter.Stats()
			return health.CheckResult{
				Status: health.StatusHealthy,
				Details: map[string]interface{}{
					"rate_per_second": stats.RatePerSecond,
					"burst":           stats.Burst,
					"allowed_total":   stats.AllowedTotal,
					"rejected_total":  stats.RejectedTotal,
				},
			}
		},
	})
}

package bootstrap

import (
	"context"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/maizdemicorazon/pos-connectivity/internal/api"
	"github.com/maizdemicorazon/pos-connectivity/internal/api/middleware"
	"github.com/maizdemicorazon/pos-connectivity/internal/app"
	cfgpkg "github.com/maizdemicorazon/pos-connectivity/internal/config"
	"github.com/maizdemicorazon/pos-connectivity/internal/health"
	"github.com/maizdemicorazon/pos-connectivity/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// Run 统一启动流程，收到 SIGINT/SIGTERM 或 ctx 结束后优雅关闭
func Run(ctx context.Context, cfg *cfgpkg.Config, log *zap.Logger) error {
	agentID := app.GenerateAgentID(cfg.App.AgentID)
	log.Info("starting pos connectivity agent",
		zap.String("agent_id", agentID),
		zap.String("backend", maskURL(cfg.Backend.BaseURL)),
		zap.String("host_mode", cfg.Host.Mode))

	// ========== 阶段1: 基础组件 ==========
	reg, cm := app.NewMetrics()
	metricsHandler := metrics.Handler(reg)
	ready := health.New()

	env, events, watcher := app.NewHostEnvironment(cfg.Host, log)
	monitor, err := app.NewMonitor(cfg, env, cm, log)
	if err != nil {
		log.Error("connectivity monitor initialization failed", zap.Error(err))
		return err
	}
	healthAgg := app.NewHealthAggregator(monitor, cfg.Connectivity)
	log.Info("basic components initialized")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// ========== 阶段2: Redis 快照发布（可选）==========
	redisClient, err := app.NewRedisClient(cfg.Redis, log)
	if err != nil {
		log.Error("redis initialization failed", zap.Error(err))
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()

		publisher := app.NewSnapshotPublisher(redisClient, cfg.Redis, agentID, log.Named("publisher"))
		unsubscribe := monitor.Subscribe(publisher.Offer)
		defer unsubscribe()
		go publisher.Run(runCtx)

		app.AddRedisChecker(healthAgg, redisClient)
		log.Info("snapshot publisher started", zap.String("key", publisher.Key()))
	}
	ready.SetPublisherReady(true)

	if notifier := app.NewTransitionNotifier(cfg.Webhook, agentID, log.Named("webhook")); notifier != nil {
		unsubscribe := monitor.Subscribe(notifier.Offer)
		defer unsubscribe()
		go notifier.Run(runCtx)
		log.Info("webhook notifier started", zap.String("url", maskURL(cfg.Webhook.URL)))
	}

	// ========== 阶段3: HTTP 服务 ==========
	httpSrv := app.NewHTTPServer(cfg.HTTP, cfg.Metrics, metricsHandler, ready.Ready)
	handler := api.NewConnectivityHandler(monitor, events, log.Named("api"))
	recheckLimiter := middleware.NewRateLimiter(cfg.API.RecheckRatePerSec, cfg.API.RecheckBurst)
	app.AddRecheckLimiterChecker(healthAgg, recheckLimiter)
	routesCfg := api.RoutesConfig{
		Auth: middleware.AuthConfig{
			APIKeys: cfg.API.APIKeys,
			Enabled: cfg.API.AuthEnabled,
		},
		CORS:           cfg.API.CORSEnabled,
		RecheckLimiter: recheckLimiter,
		OnRecheckLimit: func(*gin.Context) { cm.IncRecheckRejected() },
	}
	httpSrv.Register(func(r *gin.Engine) {
		api.RegisterConnectivityRoutes(r, handler, routesCfg, log)
		app.RegisterHealthRoutes(r, healthAgg)
	})

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- httpSrv.Start()
	}()
	log.Info("http server started", zap.String("addr", cfg.HTTP.Addr))

	// ========== 阶段4: 启动监控 ==========
	if watcher != nil {
		watcher.Start(runCtx)
		defer watcher.Stop()
	}
	monitor.Start()
	ready.SetMonitorReady(true)
	log.Info("all services ready")

	// ========== 阶段5: 等待关闭信号 ==========
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal, gracefully shutting down...", zap.String("signal", sig.String()))
	case <-ctx.Done():
		log.Info("context cancelled, gracefully shutting down...")
	case runErr = <-httpErr:
		log.Error("http server error", zap.Error(runErr))
	}

	ready.SetMonitorReady(false)
	monitor.Stop()
	log.Info("connectivity monitor stopped")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown error", zap.Error(err))
	}
	log.Info("http server stopped")

	log.Info("shutdown complete")
	return runErr
}

// maskURL 隐藏地址中的密码
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}

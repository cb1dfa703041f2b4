package app

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/maizdemicorazon/pos-connectivity/internal/config"
	"github.com/maizdemicorazon/pos-connectivity/internal/connectivity"
	"github.com/maizdemicorazon/pos-connectivity/internal/hostenv"
	"github.com/maizdemicorazon/pos-connectivity/internal/metrics"
)

// MonitorOptions 配置转监控参数
func MonitorOptions(cfg cfgpkg.ConnectivityConfig) connectivity.Options {
	return connectivity.Options{
		CheckInterval:           cfg.CheckInterval,
		Timeout:                 cfg.Timeout,
		CheckOnFocus:            cfg.CheckOnFocus,
		CheckOnVisibilityChange: cfg.CheckOnVisibilityChange,
		CheckOnStart:            cfg.CheckOnStart,
		RecheckDebounce:         cfg.RecheckDebounce,
		OnlineSettleDelay:       cfg.OnlineSettleDelay,
		HistorySize:             cfg.HistorySize,
	}
}

// NewProber 创建后端健康检查探测器。
// 单次检查超时由监控器通过 context 控制；客户端超时取 requestTimeout 与 checkTimeout 的较大值，
// 只作兜底，不能让检查比 checkTimeout 更早超时
func NewProber(cfg cfgpkg.BackendConfig, checkTimeout time.Duration) (*connectivity.HTTPProber, error) {
	client := &http.Client{Timeout: clientTimeout(cfg.RequestTimeout, checkTimeout)}
	p, err := connectivity.NewHTTPProber(client, cfg.HealthURL())
	if err != nil {
		return nil, fmt.Errorf("backend prober: %w", err)
	}
	return p, nil
}

// clientTimeout 任一值为 0 表示不限制
func clientTimeout(requestTimeout, checkTimeout time.Duration) time.Duration {
	if requestTimeout <= 0 || checkTimeout <= 0 {
		return 0
	}
	return max(requestTimeout, checkTimeout)
}

// NewMonitor 创建连接监控器
func NewMonitor(cfg *cfgpkg.Config, env connectivity.Environment, cm *metrics.ConnectivityMetrics, logger *zap.Logger) (*connectivity.Monitor, error) {
	prober, err := NewProber(cfg.Backend, cfg.Connectivity.Timeout)
	if err != nil {
		return nil, err
	}
	mon := connectivity.NewMonitor(prober, MonitorOptions(cfg.Connectivity),
		connectivity.WithEnvironment(env),
		connectivity.WithLogger(logger.Named("connectivity")),
		connectivity.WithMetrics(cm),
	)
	logger.Info("connectivity monitor created", zap.String("health_url", prober.URL()))
	return mon, nil
}

// NewHostEnvironment 按模式创建宿主环境。
// manual: 由收银界面通过 API 上报全部事件；
// probe: 额外定期拨号判断本机网络，可见性仍由界面上报。
// 返回的 Manual 始终可作为事件入口，watcher 仅 probe 模式非 nil
func NewHostEnvironment(cfg cfgpkg.HostConfig, logger *zap.Logger) (connectivity.Environment, *hostenv.Manual, *hostenv.NetWatcher) {
	manual := hostenv.NewManual(true, true)
	if cfg.Mode != cfgpkg.HostModeProbe {
		return manual, manual, nil
	}
	watcher := hostenv.NewNetWatcher(manual, cfg.ProbeTarget, cfg.ProbeInterval, cfg.ProbeTimeout, logger.Named("netwatch"))
	logger.Info("network probe enabled",
		zap.String("target", watcher.Target()),
		zap.Duration("interval", cfg.ProbeInterval))
	return watcher, manual, watcher
}

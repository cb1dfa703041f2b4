package app

import (
	"net/http"

	cfgpkg "github.com/maizdemicorazon/pos-connectivity/internal/config"
	"github.com/maizdemicorazon/pos-connectivity/internal/httpserver"
)

// NewHTTPServer 根据配置创建 HTTP 服务器；未启用指标时不暴露 /metrics
func NewHTTPServer(cfg cfgpkg.HTTPConfig, metricsCfg cfgpkg.MetricsConfig, metricsHandler http.Handler, readyFn func() bool) *httpserver.Server {
	if !metricsCfg.Enable {
		metricsHandler = nil
	}
	return httpserver.New(cfg, metricsCfg.Path, metricsHandler, readyFn)
}

package app

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/maizdemicorazon/pos-connectivity/internal/metrics"
)

// NewMetrics 初始化注册表与连接监控指标
func NewMetrics() (*prometheus.Registry, *metrics.ConnectivityMetrics) {
	reg := metrics.NewRegistry()
	cm := metrics.NewConnectivityMetrics(reg)
	return reg, cm
}

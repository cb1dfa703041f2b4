package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// ConnectivityMetrics 连接监控指标
// 所有方法对 nil 接收者安全，未启用指标时可直接传 nil
type ConnectivityMetrics struct {
	ChecksTotal     *prometheus.CounterVec // labels: result=success|network|transport|http|timeout
	CheckDuration   prometheus.Histogram
	BackendUp       prometheus.Gauge // 1=后端可达 0=不可达
	NetworkUp       prometheus.Gauge // 1=本机网络在线
	SkippedTicks    prometheus.Counter
	SupersededTotal prometheus.Counter
	RecheckRejected prometheus.Counter // 手动重检被限流次数
}

// NewConnectivityMetrics 注册并返回连接监控指标
func NewConnectivityMetrics(reg prometheus.Registerer) *ConnectivityMetrics {
	m := &ConnectivityMetrics{
		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_connectivity_checks_total",
			Help: "Completed backend connectivity checks by result.",
		}, []string{"result"}),
		CheckDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pos_connectivity_check_duration_seconds",
			Help:    "Duration of backend connectivity checks.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		BackendUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pos_connectivity_backend_up",
			Help: "Whether the backend answered the last health check.",
		}),
		NetworkUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pos_connectivity_network_up",
			Help: "Whether the host reports network connectivity.",
		}),
		SkippedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_connectivity_skipped_ticks_total",
			Help: "Polling ticks skipped because the page was hidden or the host offline.",
		}),
		SupersededTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_connectivity_superseded_total",
			Help: "In-flight checks cancelled by a forced check.",
		}),
		RecheckRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_connectivity_recheck_rejected_total",
			Help: "Manual rechecks rejected by the rate limiter.",
		}),
	}
	reg.MustRegister(m.ChecksTotal, m.CheckDuration, m.BackendUp, m.NetworkUp, m.SkippedTicks, m.SupersededTotal, m.RecheckRejected)
	return m
}

// ObserveCheck 记录一次完成的检查
func (m *ConnectivityMetrics) ObserveCheck(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(result).Inc()
	m.CheckDuration.Observe(elapsed.Seconds())
}

// SetBackendUp 更新后端可达状态
func (m *ConnectivityMetrics) SetBackendUp(up bool) {
	if m == nil {
		return
	}
	m.BackendUp.Set(boolToFloat(up))
}

// SetNetworkUp 更新本机网络状态
func (m *ConnectivityMetrics) SetNetworkUp(up bool) {
	if m == nil {
		return
	}
	m.NetworkUp.Set(boolToFloat(up))
}

// IncSkippedTick 轮询跳过计数
func (m *ConnectivityMetrics) IncSkippedTick() {
	if m == nil {
		return
	}
	m.SkippedTicks.Inc()
}

// IncSuperseded 强制检查取代计数
func (m *ConnectivityMetrics) IncSuperseded() {
	if m == nil {
		return
	}
	m.SupersededTotal.Inc()
}

// IncRecheckRejected 限流拒绝计数
func (m *ConnectivityMetrics) IncRecheckRejected() {
	if m == nil {
		return
	}
	m.RecheckRejected.Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

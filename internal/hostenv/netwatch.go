package hostenv

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultProbeTarget   = "1.1.1.1:53"
	defaultProbeInterval = 15 * time.Second
	defaultProbeTimeout  = 3 * time.Second
)

// NetWatcher 周期性拨号公共地址判断本机是否联网，结果写入 Manual。
// 可见性仍由 Manual 的调用方维护。
type NetWatcher struct {
	*Manual

	target   string
	interval time.Duration
	timeout  time.Duration
	dialer   net.Dialer
	logger   *zap.Logger

	stopOnce sync.Once
	cancel   context.CancelFunc
	doneCh   chan struct{}
}

// NewNetWatcher 创建网络探测器，target 未带端口时补 53
func NewNetWatcher(env *Manual, target string, interval, timeout time.Duration, logger *zap.Logger) *NetWatcher {
	target = strings.TrimSpace(target)
	if target == "" {
		target = defaultProbeTarget
	}
	if _, _, err := net.SplitHostPort(target); err != nil {
		target = net.JoinHostPort(target, "53")
	}
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NetWatcher{
		Manual:   env,
		target:   target,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		doneCh:   make(chan struct{}),
	}
}

// Target 探测地址
func (w *NetWatcher) Target() string { return w.target }

// Start 立即探测一次，之后按间隔探测，直到 ctx 结束或 Stop
func (w *NetWatcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	go w.run(ctx)
}

// Stop 停止探测并等待循环退出
func (w *NetWatcher) Stop() {
	w.stopOnce.Do(func() {
		if w.cancel == nil {
			close(w.doneCh)
			return
		}
		w.cancel()
		<-w.doneCh
	})
}

func (w *NetWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	w.probe(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *NetWatcher) probe(ctx context.Context) {
	dialCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	conn, err := w.dialer.DialContext(dialCtx, "tcp", w.target)
	if ctx.Err() != nil {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}

	online := err == nil
	if online {
		_ = conn.Close()
	}
	if online != w.Online() {
		if online {
			w.logger.Info("network reachable", zap.String("target", w.target))
		} else {
			w.logger.Warn("network unreachable", zap.String("target", w.target), zap.Error(err))
		}
	}
	w.SetOnline(online)
}

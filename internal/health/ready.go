package health

import "sync/atomic"

// Readiness 进程就绪状态（监控器已启动、快照发布器已就绪）
type Readiness struct {
	monitorReady   atomic.Bool
	publisherReady atomic.Bool
}

func New() *Readiness { return &Readiness{} }

func (r *Readiness) SetMonitorReady(v bool)   { r.monitorReady.Store(v) }
func (r *Readiness) SetPublisherReady(v bool) { r.publisherReady.Store(v) }

// Ready 总体就绪：各子系统均为 true
func (r *Readiness) Ready() bool {
	return r.monitorReady.Load() && r.publisherReady.Load()
}

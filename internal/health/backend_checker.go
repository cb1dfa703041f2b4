package health

import (
	"context"
	"time"

	"github.com/maizdemicorazon/pos-connectivity/internal/connectivity"
)

// SnapshotSource 提供连接状态快照（connectivity.Monitor）
type SnapshotSource interface {
	Snapshot() connectivity.Snapshot
}

// BackendChecker 基于监控器最近一次结果的后端健康检查，不额外发请求
type BackendChecker struct {
	src        SnapshotSource
	staleAfter time.Duration
	now        func() time.Time
}

// NewBackendChecker 创建后端检查器；staleAfter>0 时超过该时长未检查视为降级
func NewBackendChecker(src SnapshotSource, staleAfter time.Duration) *BackendChecker {
	return &BackendChecker{src: src, staleAfter: staleAfter, now: time.Now}
}

// Name 返回检查器名称
func (c *BackendChecker) Name() string {
	return "backend"
}

// Check 执行健康检查
func (c *BackendChecker) Check(ctx context.Context) CheckResult {
	snap := c.src.Snapshot()

	details := map[string]interface{}{
		"connection_status": snap.ConnectionStatus,
		"check_status":      snap.CheckStatus,
		"is_online":         snap.IsOnline,
		"status_text":       snap.StatusText,
	}
	var latency time.Duration
	if snap.ResponseTimeMs != nil {
		latency = time.Duration(*snap.ResponseTimeMs) * time.Millisecond
		details["response_time_ms"] = *snap.ResponseTimeMs
	}
	if snap.LastCheckTimestamp != nil {
		details["last_check"] = snap.LastCheckTimestamp.UTC()
	}
	if snap.LastError != nil {
		details["last_error"] = *snap.LastError
	}

	result := CheckResult{Details: details, Latency: latency}
	online, known := snap.BackendOnline()
	switch {
	case !snap.IsOnline:
		result.Status, result.Message = StatusUnhealthy, "host offline"
	case !known:
		result.Status, result.Message = StatusDegraded, "backend not checked yet"
	case !online:
		result.Status, result.Message = StatusUnhealthy, "backend unreachable"
	case c.stale(snap):
		result.Status, result.Message = StatusDegraded, "last check is stale"
	default:
		result.Status, result.Message = StatusHealthy, "ok"
	}
	return result
}

func (c *BackendChecker) stale(snap connectivity.Snapshot) bool {
	if c.staleAfter <= 0 || snap.LastCheckTimestamp == nil {
		return false
	}
	return c.now().Sub(*snap.LastCheckTimestamp) > c.staleAfter
}

package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/maizdemicorazon/pos-connectivity/internal/connectivity"
)

type staticSource struct {
	state connectivity.State
}

func (s staticSource) Snapshot() connectivity.Snapshot { return s.state.Snapshot() }

func boolPtr(b bool) *bool { return &b }

func TestBackendChecker(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	recent := now.Add(-time.Minute)
	old := now.Add(-time.Hour)
	ms := int64(42)
	reason := "HTTP 503"

	tests := []struct {
		name    string
		state   connectivity.State
		status  Status
		message string
	}{
		{"本机离线", connectivity.State{IsOnline: false, IsBackendOnline: boolPtr(false)}, StatusUnhealthy, "host offline"},
		{"尚未检查", connectivity.State{IsOnline: true, CheckStatus: connectivity.CheckIdle}, StatusDegraded, "backend not checked yet"},
		{"后端不可达", connectivity.State{IsOnline: true, IsBackendOnline: boolPtr(false), LastError: &reason, LastCheckTimestamp: &recent}, StatusUnhealthy, "backend unreachable"},
		{"已连接", connectivity.State{IsOnline: true, IsBackendOnline: boolPtr(true), LastCheckTimestamp: &recent, ResponseTimeMs: &ms}, StatusHealthy, "ok"},
		{"检查中沿用上次结果", connectivity.State{IsOnline: true, IsBackendOnline: boolPtr(true), CheckStatus: connectivity.CheckChecking, LastCheckTimestamp: &recent}, StatusHealthy, "ok"},
		{"结果过期", connectivity.State{IsOnline: true, IsBackendOnline: boolPtr(true), LastCheckTimestamp: &old}, StatusDegraded, "last check is stale"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewBackendChecker(staticSource{tt.state}, 30*time.Minute)
			c.now = func() time.Time { return now }

			res := c.Check(context.Background())
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.message, res.Message)
		})
	}
}

func TestBackendCheckerDetails(t *testing.T) {
	ms := int64(120)
	reason := "Timeout"
	c := NewBackendChecker(staticSource{connectivity.State{
		IsOnline:        true,
		IsBackendOnline: boolPtr(false),
		ResponseTimeMs:  &ms,
		LastError:       &reason,
		CheckStatus:     connectivity.CheckError,
	}}, 0)

	res := c.Check(context.Background())
	assert.Equal(t, "backend", c.Name())
	assert.Equal(t, 120*time.Millisecond, res.Latency)
	assert.Equal(t, "Timeout", res.Details["last_error"])
	assert.Equal(t, connectivity.StatusBackendOffline, res.Details["connection_status"])
}

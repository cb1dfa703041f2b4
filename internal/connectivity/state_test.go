package connectivity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateStatusPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		state  State
		status ConnectionStatus
		text   string
	}{
		{"离线优先于检查中", State{IsOnline: false, CheckStatus: CheckChecking, IsBackendOnline: ptr(true)}, StatusOffline, "Sin conexión a internet"},
		{"检查中", State{IsOnline: true, CheckStatus: CheckChecking, IsBackendOnline: ptr(false)}, StatusChecking, "Verificando conexión..."},
		{"已连接", State{IsOnline: true, CheckStatus: CheckConnected, IsBackendOnline: ptr(true)}, StatusConnected, "Conectado"},
		{"后端不可达", State{IsOnline: true, CheckStatus: CheckError, IsBackendOnline: ptr(false)}, StatusBackendOffline, "Servidor no disponible"},
		{"尚未检查", State{IsOnline: true, CheckStatus: CheckIdle}, StatusBackendOffline, "Servidor sin verificar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.state.Status())
			assert.Equal(t, tt.text, tt.state.Describe())
		})
	}
}

func TestStateFullyConnected(t *testing.T) {
	assert.True(t, State{IsOnline: true, IsBackendOnline: ptr(true)}.FullyConnected())
	assert.False(t, State{IsOnline: false, IsBackendOnline: ptr(true)}.FullyConnected())
	assert.False(t, State{IsOnline: true, IsBackendOnline: ptr(false)}.FullyConnected())
	assert.False(t, State{IsOnline: true}.FullyConnected())
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := State{
		IsOnline:           true,
		IsBackendOnline:    ptr(true),
		LastCheckTimestamp: &now,
		ResponseTimeMs:     ptr(int64(42)),
		CheckStatus:        CheckConnected,
	}
	snap := s.Snapshot()

	*s.IsBackendOnline = false
	*s.ResponseTimeMs = 7
	assert.True(t, *snap.IsBackendOnline)
	assert.Equal(t, int64(42), *snap.ResponseTimeMs)
	assert.True(t, snap.IsFullyConnected)
	assert.Equal(t, StatusConnected, snap.ConnectionStatus)
}

func TestSnapshotJSON(t *testing.T) {
	snap := State{IsOnline: true, CheckStatus: CheckIdle}.Snapshot()
	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, true, out["isOnline"])
	assert.Nil(t, out["isBackendOnline"])
	assert.Nil(t, out["lastCheckTimestamp"])
	assert.Equal(t, "idle", out["checkStatus"])
	assert.Equal(t, "backend-offline", out["connectionStatus"])
	assert.Equal(t, false, out["isFullyConnected"])
}

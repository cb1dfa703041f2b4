package connectivity

import "time"

// CheckStatus 检查进度
type CheckStatus string

const (
	CheckIdle      CheckStatus = "idle"      // 尚未检查
	CheckChecking  CheckStatus = "checking"  // 检查进行中
	CheckConnected CheckStatus = "connected" // 上次检查成功
	CheckError     CheckStatus = "error"     // 上次检查失败或本机离线
)

// ConnectionStatus 面向界面的综合连接状态
type ConnectionStatus string

const (
	StatusOffline        ConnectionStatus = "offline"
	StatusChecking       ConnectionStatus = "checking"
	StatusConnected      ConnectionStatus = "connected"
	StatusBackendOffline ConnectionStatus = "backend-offline"
)

// ReasonNoInternet 本机断网时记录的错误
const ReasonNoInternet = "No internet connection"

// ReasonTimeout 检查超时时记录的错误
const ReasonTimeout = "Timeout"

// State 连接状态，仅由 Monitor 修改，对外只暴露副本
type State struct {
	IsOnline           bool        `json:"isOnline"`
	IsBackendOnline    *bool       `json:"isBackendOnline"`
	LastCheckTimestamp *time.Time  `json:"lastCheckTimestamp"`
	LastError          *string     `json:"lastError"`
	ResponseTimeMs     *int64      `json:"responseTimeMs"`
	CheckStatus        CheckStatus `json:"checkStatus"`
}

// BackendOnline 返回上次检查结果，未检查过时 ok=false
func (s State) BackendOnline() (online bool, ok bool) {
	if s.IsBackendOnline == nil {
		return false, false
	}
	return *s.IsBackendOnline, true
}

// FullyConnected 本机在线且后端可达
func (s State) FullyConnected() bool {
	return s.IsOnline && s.IsBackendOnline != nil && *s.IsBackendOnline
}

// Status 按 offline > checking > connected > backend-offline 的优先级推导
func (s State) Status() ConnectionStatus {
	switch {
	case !s.IsOnline:
		return StatusOffline
	case s.CheckStatus == CheckChecking:
		return StatusChecking
	case s.IsBackendOnline != nil && *s.IsBackendOnline:
		return StatusConnected
	default:
		return StatusBackendOffline
	}
}

// Describe 返回收银界面显示的状态文案
func (s State) Describe() string {
	switch s.Status() {
	case StatusOffline:
		return "Sin conexión a internet"
	case StatusChecking:
		return "Verificando conexión..."
	case StatusConnected:
		return "Conectado"
	default:
		if s.IsBackendOnline == nil {
			return "Servidor sin verificar"
		}
		return "Servidor no disponible"
	}
}

// Snapshot 状态快照（含派生字段），可直接序列化给界面
type Snapshot struct {
	State
	IsFullyConnected bool             `json:"isFullyConnected"`
	ConnectionStatus ConnectionStatus `json:"connectionStatus"`
	StatusText       string           `json:"statusText"`
}

// Snapshot 深拷贝当前状态并计算派生字段
func (s State) Snapshot() Snapshot {
	cp := State{
		IsOnline:    s.IsOnline,
		CheckStatus: s.CheckStatus,
	}
	if s.IsBackendOnline != nil {
		cp.IsBackendOnline = ptr(*s.IsBackendOnline)
	}
	if s.LastCheckTimestamp != nil {
		cp.LastCheckTimestamp = ptr(*s.LastCheckTimestamp)
	}
	if s.LastError != nil {
		cp.LastError = ptr(*s.LastError)
	}
	if s.ResponseTimeMs != nil {
		cp.ResponseTimeMs = ptr(*s.ResponseTimeMs)
	}
	return Snapshot{
		State:            cp,
		IsFullyConnected: cp.FullyConnected(),
		ConnectionStatus: cp.Status(),
		StatusText:       cp.Describe(),
	}
}

func ptr[T any](v T) *T { return &v }

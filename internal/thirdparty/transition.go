package thirdparty

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maizdemicorazon/pos-connectivity/internal/connectivity"
)

// EventConnectivityChanged 连接状态变化事件名
const EventConnectivityChanged = "connectivity.changed"

// queueSize 待推送事件缓冲，满时丢弃新事件
const queueSize = 32

// Event 推送给后台的事件
type Event struct {
	Event     string         `json:"event"`
	AgentID   string         `json:"agentId"`
	Timestamp int64          `json:"timestamp"`
	Nonce     string         `json:"nonce"`
	Data      TransitionData `json:"data"`
}

// TransitionData 状态变化详情，From 为空表示启动后的首个结论
type TransitionData struct {
	From     connectivity.ConnectionStatus `json:"from,omitempty"`
	To       connectivity.ConnectionStatus `json:"to"`
	Snapshot connectivity.Snapshot         `json:"snapshot"`
}

// TransitionNotifier 只在结论性状态（connected/backend-offline/offline）变化时推送，
// checking 与未检查状态不推送
type TransitionNotifier struct {
	pusher   *Pusher
	endpoint string
	agentID  string
	logger   *zap.Logger
	now      func() time.Time

	mu   sync.Mutex
	last connectivity.ConnectionStatus

	queue chan Event
}

// NewTransitionNotifier 创建通知器
func NewTransitionNotifier(pusher *Pusher, endpoint, agentID string, logger *zap.Logger) *TransitionNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransitionNotifier{
		pusher:   pusher,
		endpoint: endpoint,
		agentID:  agentID,
		logger:   logger,
		now:      time.Now,
		queue:    make(chan Event, queueSize),
	}
}

// Offer 作为 Monitor 订阅回调，不阻塞
func (n *TransitionNotifier) Offer(s connectivity.Snapshot) {
	status := s.ConnectionStatus
	if status == connectivity.StatusChecking {
		return
	}
	// 在线但尚未得到检查结果
	if s.IsOnline && s.IsBackendOnline == nil {
		return
	}

	n.mu.Lock()
	from := n.last
	if from == status {
		n.mu.Unlock()
		return
	}
	n.last = status
	n.mu.Unlock()

	ev := Event{
		Event:     EventConnectivityChanged,
		AgentID:   n.agentID,
		Timestamp: n.now().Unix(),
		Nonce:     uuid.NewString(),
		Data:      TransitionData{From: from, To: status, Snapshot: s},
	}
	select {
	case n.queue <- ev:
	default:
		n.logger.Warn("webhook queue full, transition dropped",
			zap.String("from", string(from)),
			zap.String("to", string(status)))
	}
}

// Run 顺序推送队列中的事件，直到 ctx 结束
func (n *TransitionNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-n.queue:
			n.deliver(ctx, ev)
		}
	}
}

func (n *TransitionNotifier) deliver(ctx context.Context, ev Event) {
	code, _, err := n.pusher.SendJSON(ctx, n.endpoint, ev)
	if err != nil {
		if ctx.Err() == nil {
			n.logger.Warn("webhook push failed",
				zap.String("to", string(ev.Data.To)),
				zap.Error(err))
		}
		return
	}
	if code < 200 || code >= 300 {
		n.logger.Warn("webhook rejected transition",
			zap.Int("status", code),
			zap.String("to", string(ev.Data.To)))
		return
	}
	n.logger.Debug("webhook transition delivered",
		zap.String("from", string(ev.Data.From)),
		zap.String("to", string(ev.Data.To)))
}

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/maizdemicorazon/pos-connectivity/internal/connectivity"
)

// ConnectivityService 监控器对外能力（connectivity.Monitor）
type ConnectivityService interface {
	Snapshot() connectivity.Snapshot
	History(limit int) []connectivity.CheckRecord
	Subscribe(fn func(connectivity.Snapshot)) (unsubscribe func())
	Recheck(ctx context.Context) bool
}

// EventSink 接收收银界面上报的宿主事件（hostenv.Manual）
type EventSink interface {
	Dispatch(ev connectivity.Event, visible *bool)
}

// ConnectivityHandler 连接状态API处理器
type ConnectivityHandler struct {
	svc    ConnectivityService
	events EventSink
	stream *streamer
	logger *zap.Logger
}

// NewConnectivityHandler 创建处理器；events 为 nil 时不接受事件上报
func NewConnectivityHandler(svc ConnectivityService, events EventSink, logger *zap.Logger) *ConnectivityHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectivityHandler{
		svc:    svc,
		events: events,
		stream: newStreamer(svc, logger),
		logger: logger,
	}
}

// EventRequest 宿主事件上报
type EventRequest struct {
	Type    string `json:"type" binding:"required"`
	Visible *bool  `json:"visible,omitempty"`
}

// RecheckResponse 手动重检结果
type RecheckResponse struct {
	BackendOnline bool                  `json:"backendOnline"`
	Snapshot      connectivity.Snapshot `json:"snapshot"`
}

const maxHistoryLimit = 1000

// GetSnapshot 当前连接状态
// GET /api/v1/connectivity
func (h *ConnectivityHandler) GetSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Snapshot())
}

// Recheck 立即强制重检，等待结果返回
// POST /api/v1/connectivity/recheck
func (h *ConnectivityHandler) Recheck(c *gin.Context) {
	online := h.svc.Recheck(c.Request.Context())
	c.JSON(http.StatusOK, RecheckResponse{
		BackendOnline: online,
		Snapshot:      h.svc.Snapshot(),
	})
}

// PostEvent 收银界面上报 online/offline/visibilitychange/focus
// POST /api/v1/connectivity/events
func (h *ConnectivityHandler) PostEvent(c *gin.Context) {
	if h.events == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "host events are not accepted in this mode"})
		return
	}

	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ev, err := connectivity.ParseEvent(req.Type)
	if err != nil {
		if errors.Is(err, connectivity.ErrInvalidEvent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.events.Dispatch(ev, req.Visible)
	h.logger.Debug("host event received", zap.String("type", string(ev)))
	c.JSON(http.StatusAccepted, gin.H{"accepted": true, "type": ev})
}

// GetHistory 最近的检查记录
// GET /api/v1/connectivity/history?limit=20
func (h *ConnectivityHandler) GetHistory(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records := h.svc.History(limit)
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

// Stream 通过 WebSocket 推送状态变化
// GET /api/v1/connectivity/stream
func (h *ConnectivityHandler) Stream(c *gin.Context) {
	h.stream.serve(c.Writer, c.Request)
}

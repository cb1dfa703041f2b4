package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/maizdemicorazon/pos-connectivity/internal/connectivity"
)

const (
	streamWriteTimeout = 5 * time.Second
	streamPingInterval = 30 * time.Second
)

// sameHostOrigin 仅允许同源或无 Origin 的连接
func sameHostOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(strings.TrimSpace(r.Host))
	originHost := strings.ToLower(strings.TrimSpace(u.Host))
	return host == originHost
}

type streamer struct {
	svc      ConnectivityService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func newStreamer(svc ConnectivityService, logger *zap.Logger) *streamer {
	return &streamer{
		svc:      svc,
		upgrader: websocket.Upgrader{CheckOrigin: sameHostOrigin},
		logger:   logger,
	}
}

// allowAnyOrigin 开启 CORS 时收银界面可能来自其他源
func (s *streamer) allowAnyOrigin() {
	s.upgrader.CheckOrigin = func(*http.Request) bool { return true }
}

func (s *streamer) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// 只保留最新快照，慢客户端不会阻塞监控器的通知
	updates := make(chan connectivity.Snapshot, 1)
	unsubscribe := s.svc.Subscribe(func(snap connectivity.Snapshot) {
		for {
			select {
			case updates <- snap:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()

	if err := writeSnapshot(conn, s.svc.Snapshot()); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case snap := <-updates:
			if err := writeSnapshot(conn, snap); err != nil {
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(streamWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap connectivity.Snapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(snap)
}

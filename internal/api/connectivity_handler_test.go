package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maizdemicorazon/pos-connectivity/internal/api/middleware"
	"github.com/maizdemicorazon/pos-connectivity/internal/connectivity"
)

type fakeService struct {
	mu       sync.Mutex
	state    connectivity.State
	records  []connectivity.CheckRecord
	subs     map[int]func(connectivity.Snapshot)
	next     int
	rechecks int
}

func newFakeService() *fakeService {
	return &fakeService{
		state: connectivity.State{IsOnline: true, CheckStatus: connectivity.CheckIdle},
		subs:  make(map[int]func(connectivity.Snapshot)),
	}
}

func (f *fakeService) Snapshot() connectivity.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Snapshot()
}

func (f *fakeService) History(limit int) []connectivity.CheckRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > len(f.records) {
		limit = len(f.records)
	}
	return f.records[:limit]
}

func (f *fakeService) Subscribe(fn func(connectivity.Snapshot)) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *fakeService) Recheck(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rechecks++
	online := true
	now := time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC)
	f.state.IsBackendOnline = &online
	f.state.LastCheckTimestamp = &now
	f.state.CheckStatus = connectivity.CheckConnected
	return true
}

func (f *fakeService) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeService) publish(s connectivity.State) {
	f.mu.Lock()
	f.state = s
	fns := make([]func(connectivity.Snapshot), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(s.Snapshot())
	}
}

type fakeSink struct {
	mu      sync.Mutex
	events  []connectivity.Event
	visible []*bool
}

func (s *fakeSink) Dispatch(ev connectivity.Event, visible *bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	s.visible = append(s.visible, visible)
}

func newTestRouter(svc ConnectivityService, sink EventSink, cfg RoutesConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterConnectivityRoutes(r, NewConnectivityHandler(svc, sink, zap.NewNop()), cfg, zap.NewNop())
	return r
}

func serve(r http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestGetSnapshot(t *testing.T) {
	r := newTestRouter(newFakeService(), nil, RoutesConfig{})

	rr := serve(r, http.MethodGet, "/api/v1/connectivity", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, true, body["isOnline"])
	assert.Nil(t, body["isBackendOnline"])
	assert.Equal(t, "backend-offline", body["connectionStatus"])
	assert.Equal(t, "Servidor sin verificar", body["statusText"])
}

func TestRecheck(t *testing.T) {
	svc := newFakeService()
	rejected := 0
	r := newTestRouter(svc, nil, RoutesConfig{
		RecheckLimiter: middleware.NewRateLimiter(1, 1),
		OnRecheckLimit: func(c *gin.Context) { rejected++ },
	})

	rr := serve(r, http.MethodPost, "/api/v1/connectivity/recheck", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp RecheckResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.BackendOnline)
	assert.Equal(t, connectivity.StatusConnected, resp.Snapshot.ConnectionStatus)

	rr = serve(r, http.MethodPost, "/api/v1/connectivity/recheck", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 1, svc.rechecks)
}

func TestPostEvent(t *testing.T) {
	t.Run("合法事件", func(t *testing.T) {
		sink := &fakeSink{}
		r := newTestRouter(newFakeService(), sink, RoutesConfig{})

		rr := serve(r, http.MethodPost, "/api/v1/connectivity/events", []byte(`{"type":"visibilitychange","visible":true}`))
		assert.Equal(t, http.StatusAccepted, rr.Code)
		rr = serve(r, http.MethodPost, "/api/v1/connectivity/events", []byte(`{"type":"offline"}`))
		assert.Equal(t, http.StatusAccepted, rr.Code)

		require.Len(t, sink.events, 2)
		assert.Equal(t, connectivity.EventVisibilityChange, sink.events[0])
		require.NotNil(t, sink.visible[0])
		assert.True(t, *sink.visible[0])
		assert.Equal(t, connectivity.EventOffline, sink.events[1])
		assert.Nil(t, sink.visible[1])
	})

	t.Run("未知事件", func(t *testing.T) {
		r := newTestRouter(newFakeService(), &fakeSink{}, RoutesConfig{})
		rr := serve(r, http.MethodPost, "/api/v1/connectivity/events", []byte(`{"type":"blur"}`))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "invalid host event")
	})

	t.Run("缺少type", func(t *testing.T) {
		r := newTestRouter(newFakeService(), &fakeSink{}, RoutesConfig{})
		rr := serve(r, http.MethodPost, "/api/v1/connectivity/events", []byte(`{}`))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("不接受事件", func(t *testing.T) {
		r := newTestRouter(newFakeService(), nil, RoutesConfig{})
		rr := serve(r, http.MethodPost, "/api/v1/connectivity/events", []byte(`{"type":"focus"}`))
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestGetHistory(t *testing.T) {
	svc := newFakeService()
	for i := 0; i < 5; i++ {
		svc.records = append(svc.records, connectivity.CheckRecord{OK: true, Trigger: connectivity.TriggerInterval})
	}
	r := newTestRouter(svc, nil, RoutesConfig{})

	rr := serve(r, http.MethodGet, "/api/v1/connectivity/history?limit=3", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Records []connectivity.CheckRecord `json:"records"`
		Count   int                        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Count)
	assert.Len(t, body.Records, 3)

	rr = serve(r, http.MethodGet, "/api/v1/connectivity/history?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = serve(r, http.MethodGet, "/api/v1/connectivity/history?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRoutesAuthAndCORS(t *testing.T) {
	r := newTestRouter(newFakeService(), nil, RoutesConfig{
		CORS: true,
		Auth: middleware.AuthConfig{Enabled: true, APIKeys: []string{"sk_test_abcdefgh"}},
	})

	rr := serve(r, http.MethodGet, "/api/v1/connectivity", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = serve(r, http.MethodOptions, "/api/v1/connectivity/recheck", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/connectivity", nil)
	req.Header.Set("X-API-Key", "sk_test_abcdefgh")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStream(t *testing.T) {
	svc := newFakeService()
	srv := httptest.NewServer(newTestRouter(svc, nil, RoutesConfig{}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/connectivity/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first connectivity.Snapshot
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, connectivity.CheckIdle, first.CheckStatus)

	require.Eventually(t, func() bool { return svc.subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	svc.publish(connectivity.State{IsOnline: false, CheckStatus: connectivity.CheckError})

	var next connectivity.Snapshot
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, connectivity.StatusOffline, next.ConnectionStatus)
	assert.Equal(t, "Sin conexión a internet", next.StatusText)

	conn.Close()
	assert.Eventually(t, func() bool { return svc.subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamRejectsCrossOrigin(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(newFakeService(), nil, RoutesConfig{}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/connectivity/stream"
	header := http.Header{"Origin": []string{"http://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}

package thirdparty

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maizdemicorazon/pos-connectivity/internal/connectivity"
)

func snapshotWith(online bool, backend *bool, status connectivity.CheckStatus) connectivity.Snapshot {
	return connectivity.State{IsOnline: online, IsBackendOnline: backend, CheckStatus: status}.Snapshot()
}

func drain(n *TransitionNotifier) []Event {
	var out []Event
	for {
		select {
		case ev := <-n.queue:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestTransitionNotifier_OnlySettledChanges(t *testing.T) {
	up, down := true, false
	n := NewTransitionNotifier(NewPusher(nil, "", ""), "http://backoffice.local/hook", "pos-1", zap.NewNop())

	n.Offer(snapshotWith(true, nil, connectivity.CheckIdle))
	n.Offer(snapshotWith(true, nil, connectivity.CheckChecking))
	n.Offer(snapshotWith(true, &up, connectivity.CheckConnected))
	n.Offer(snapshotWith(true, &up, connectivity.CheckChecking))
	n.Offer(snapshotWith(true, &up, connectivity.CheckConnected))
	n.Offer(snapshotWith(true, &down, connectivity.CheckError))
	n.Offer(snapshotWith(false, &down, connectivity.CheckError))

	events := drain(n)
	require.Len(t, events, 3)

	assert.Equal(t, connectivity.ConnectionStatus(""), events[0].Data.From)
	assert.Equal(t, connectivity.StatusConnected, events[0].Data.To)
	assert.Equal(t, connectivity.StatusConnected, events[1].Data.From)
	assert.Equal(t, connectivity.StatusBackendOffline, events[1].Data.To)
	assert.Equal(t, connectivity.StatusOffline, events[2].Data.To)
	for _, ev := range events {
		assert.Equal(t, EventConnectivityChanged, ev.Event)
		assert.Equal(t, "pos-1", ev.AgentID)
		assert.NotEmpty(t, ev.Nonce)
	}
}

func TestTransitionNotifier_QueueFullDrops(t *testing.T) {
	up, down := true, false
	n := NewTransitionNotifier(NewPusher(nil, "", ""), "http://backoffice.local/hook", "pos-1", nil)
	for i := 0; i < queueSize+5; i++ {
		if i%2 == 0 {
			n.Offer(snapshotWith(true, &up, connectivity.CheckConnected))
		} else {
			n.Offer(snapshotWith(true, &down, connectivity.CheckError))
		}
	}
	assert.Len(t, drain(n), queueSize)
}

func TestTransitionNotifier_Run(t *testing.T) {
	var mu sync.Mutex
	var received []Event
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := verifySignature(t, r, "secret")
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var ev Event
		if err := json.Unmarshal(body, &ev); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, ev)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	n := NewTransitionNotifier(fastPusher("key", "secret"), ts.URL+"/hook", "pos-1", zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	up := true
	n.Offer(snapshotWith(true, &up, connectivity.CheckConnected))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "pos-1", received[0].AgentID)
	assert.Equal(t, connectivity.StatusConnected, received[0].Data.To)
	assert.True(t, received[0].Data.Snapshot.IsFullyConnected)
}

func TestEvent_JSON(t *testing.T) {
	up := true
	ev := Event{
		Event:     EventConnectivityChanged,
		AgentID:   "pos-1",
		Timestamp: 1700000000,
		Nonce:     "n",
		Data: TransitionData{
			To:       connectivity.StatusConnected,
			Snapshot: snapshotWith(true, &up, connectivity.CheckConnected),
		},
	}
	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	data := got["data"].(map[string]any)
	assert.NotContains(t, data, "from")
	assert.Equal(t, "connected", data["to"])
	assert.Equal(t, "connected", data["snapshot"].(map[string]any)["connectionStatus"])
}

package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/pkg/logger"
)

func testUpdate(runID string) *WeightsUpdate {
	return NewWeightsUpdate(runID, contracts.RegimeBull, &contracts.TargetWeights{
		DecisionDate: time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC),
		Weights:      map[string]float64{"005930": 0.6, "000660": 0.4},
	}, "hash-1")
}

func startHub(t *testing.T) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()

	hub := NewHub(logger.Nop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	return hub, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readUpdate(t *testing.T, conn *websocket.Conn) WeightsUpdate {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var got WeightsUpdate
	require.NoError(t, conn.ReadJSON(&got))
	return got
}

func TestHub_BroadcastReachesSubscriber(t *testing.T) {
	hub, srv, cancel := startHub(t)
	defer cancel()

	conn := dial(t, srv)
	hub.Broadcast(testUpdate("run_1"))

	got := readUpdate(t, conn)
	assert.Equal(t, "run_1", got.RunID)
	assert.Equal(t, "2025-06-13", got.DecisionDate)
	assert.Equal(t, "BULL", got.Regime)
	assert.Equal(t, "hash-1", got.Hash)
	assert.InDelta(t, 0.6, got.Weights["005930"], 1e-12)
}

func TestHub_BroadcastReachesAllSubscribers(t *testing.T) {
	hub, srv, cancel := startHub(t)
	defer cancel()

	first := dial(t, srv)
	second := dial(t, srv)
	hub.Broadcast(testUpdate("run_2"))

	assert.Equal(t, "run_2", readUpdate(t, first).RunID)
	assert.Equal(t, "run_2", readUpdate(t, second).RunID)
}

func TestHub_ReplaysLastUpdateToNewSubscriber(t *testing.T) {
	hub, srv, cancel := startHub(t)
	defer cancel()

	// 브로드캐스트 시점에 구독자가 없어도 결정은 유실되지 않는다
	hub.Broadcast(testUpdate("run_3"))

	conn := dial(t, srv)
	got := readUpdate(t, conn)
	assert.Equal(t, "run_3", got.RunID)
	assert.False(t, got.CashOut)
}

func TestHub_ShutdownClosesConnections(t *testing.T) {
	_, srv, cancel := startHub(t)

	conn := dial(t, srv)
	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHub_NilSafeBroadcast(t *testing.T) {
	var hub *Hub
	hub.Broadcast(testUpdate("run_4")) // 패닉하지 않아야 함
}

func TestNewWeightsUpdate_CopiesWeights(t *testing.T) {
	target := &contracts.TargetWeights{
		DecisionDate: time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC),
		Weights:      map[string]float64{"005930": 1.0},
		CashOut:      false,
	}

	update := NewWeightsUpdate("run_5", contracts.RegimeSideways, target, "h")
	target.Weights["005930"] = 0.0

	assert.InDelta(t, 1.0, update.Weights["005930"], 1e-12)
	assert.Equal(t, "SIDEWAYS", update.Regime)
	assert.False(t, update.PublishedAt.IsZero())
}

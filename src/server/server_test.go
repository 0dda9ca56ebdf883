package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"quote-observer/src/logger"
	"quote-observer/src/models"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct{ status models.MStreamStatus }

func (f *fakeStream) Status() models.MStreamStatus { return f.status }

type fakePipeline struct {
	mu     sync.Mutex
	stats   models.MPipelineMetrics
	latest  map[string]map[string]models.MSnapshot
	current map[string]map[string]models.MSnapshot
}

func (f *fakePipeline) Stats() models.MPipelineMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *fakePipeline) LatestData() models.MLatestData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.MLatestData{Type: "INITIAL", Snapshots: f.latest, Current: f.current, Metrics: f.stats}
}

func newTestServer(t *testing.T) (*StatusServer, *fakePipeline) {
	t.Helper()

	cfg := &models.MConfig{
		LogLevel: "INFO",
		Stream:   models.MStreamConfig{Symbols: []string{"AAPL", "MSFT"}},
		Analysis: models.MAnalysisConfig{Windows: []string{"1m", "15m"}},
		Server:   models.MServerConfig{Enabled: true, Host: "127.0.0.1", Port: 8090},
	}
	pipeline := &fakePipeline{
		stats: models.MPipelineMetrics{QuotesReceived: 42, QuotesDropped: 1},
		latest: map[string]map[string]models.MSnapshot{
			"AAPL": {"1m": {Symbol: "AAPL", Window: "1m", Count: 3, LastEventTime: 1_700_000_000_500}},
			"MSFT": {"1m": {Symbol: "MSFT", Window: "1m", Count: 7, LastEventTime: 1_700_000_000_900}},
		},
		current: map[string]map[string]models.MSnapshot{
			"AAPL": {"1m": {Symbol: "AAPL", Window: "1m", Count: 1, Partial: true}},
			"MSFT": {"1m": {Symbol: "MSFT", Window: "1m", Count: 2, Partial: true}},
		},
	}
	stream := &fakeStream{status: models.MStreamStatus{State: "streaming", SessionID: "abc", Attempt: 0}}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "quote_observer_test_total", Help: "test"}))

	s := NewStatusServer(cfg, stream, pipeline, reg, logger.NewNop())
	t.Cleanup(func() { s.Stop() })
	return s, pipeline
}

func get(t *testing.T, s *StatusServer, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// -----------------------------------------------------------------------------

func TestStatusServer_RestEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var health struct {
		Status       string               `json:"status"`
		Stream       models.MStreamStatus `json:"stream"`
		LatestUpdate int64                `json:"latest_update"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "abc", health.Stream.SessionID)
	assert.Equal(t, int64(1_700_000_000_900), health.LatestUpdate)

	rec = get(t, s, "/api/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.MPipelineMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, uint64(42), stats.QuotesReceived)
	assert.Equal(t, uint64(1), stats.QuotesDropped)

	rec = get(t, s, "/api/config")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"symbols":["AAPL","MSFT"],"windows":["1m","15m"]}`, rec.Body.String())

	rec = get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "quote_observer_test_total")
}

func TestStatusServer_HealthDegradedWhileReconnecting(t *testing.T) {
	s, _ := newTestServer(t)
	s.stream = &fakeStream{status: models.MStreamStatus{State: "disconnected", Attempt: 3}}

	rec := get(t, s, "/api/health")
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}

// -----------------------------------------------------------------------------

func dialWS(t *testing.T, s *StatusServer) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readLatest(t *testing.T, conn *websocket.Conn) models.MLatestData {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg models.MLatestData
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestStatusServer_WebSocketInitialAndUpdates(t *testing.T) {
	s, _ := newTestServer(t)
	s.StartHub()
	conn := dialWS(t, s)

	initial := readLatest(t, conn)
	assert.Equal(t, "INITIAL", initial.Type)
	assert.Len(t, initial.Snapshots, 2)
	assert.Len(t, initial.Current, 2)

	require.NoError(t, s.Publish(context.Background(), []models.MSnapshot{
		{Symbol: "AAPL", Window: "15m", Count: 11},
	}))

	update := readLatest(t, conn)
	assert.Equal(t, "UPDATE", update.Type)
	assert.Equal(t, int64(11), update.Snapshots["AAPL"]["15m"].Count)
	assert.Equal(t, uint64(42), update.Metrics.QuotesReceived)
}

func TestStatusServer_SubscribeFiltersUpdates(t *testing.T) {
	s, _ := newTestServer(t)
	s.StartHub()
	conn := dialWS(t, s)
	readLatest(t, conn) // initial

	require.NoError(t, conn.WriteJSON(models.MSubscribeCommand{Command: "subscribe", Symbols: []string{"MSFT"}, Window: "1m"}))
	filtered := readLatest(t, conn)
	require.Len(t, filtered.Snapshots, 1)
	assert.Equal(t, int64(7), filtered.Snapshots["MSFT"]["1m"].Count)
	require.Len(t, filtered.Current, 1)
	assert.Equal(t, int64(2), filtered.Current["MSFT"]["1m"].Count)

	// AAPL updates no longer reach this client.
	require.NoError(t, s.Publish(context.Background(), []models.MSnapshot{{Symbol: "AAPL", Window: "1m", Count: 4}}))
	require.NoError(t, s.Publish(context.Background(), []models.MSnapshot{{Symbol: "MSFT", Window: "1m", Count: 8}}))

	update := readLatest(t, conn)
	require.Contains(t, update.Snapshots, "MSFT")
	assert.NotContains(t, update.Snapshots, "AAPL")
	assert.Equal(t, int64(8), update.Snapshots["MSFT"]["1m"].Count)
}

func TestStatusServer_HubDropsSlowClients(t *testing.T) {
	s, _ := newTestServer(t)
	s.StartHub()

	slow := &Client{hub: s, send: make(chan *models.MLatestData), direct: make(chan *models.MLatestData, 1)}
	s.register <- slow
	require.Eventually(t, func() bool { return s.clientCount.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.Broadcast(models.MLatestData{Type: "UPDATE"})
	require.Eventually(t, func() bool { return s.clientCount.Load() == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-slow.send
	assert.False(t, open)
}

func TestStatusServer_BroadcastRejectsUnknownPayload(t *testing.T) {
	s, _ := newTestServer(t)
	s.Broadcast("not a snapshot")
	assert.Empty(t, s.broadcast)
}

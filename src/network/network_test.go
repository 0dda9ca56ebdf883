package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quote-observer/src/helpers"
	"quote-observer/src/logger"
	"quote-observer/src/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebsocketDialer_SendsTokenAndUserAgent(t *testing.T) {
	var gotToken, gotAgent string
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.URL.Query().Get("token")
		gotAgent = r.Header.Get("User-Agent")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	d := NewWebsocketDialer(models.MStreamConfig{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		Token:          "secret",
		ConnectTimeout: time.Second,
	}, models.MNetworkConfig{UserAgent: "quote-observer-test"}, logger.NewNop())

	conn, err := d.Dial(context.Background())
	require.NoError(t, err)
	conn.Close()

	assert.Equal(t, "secret", gotToken)
	assert.Equal(t, "quote-observer-test", gotAgent)
}

func TestWebsocketDialer_FailureIsConnectionErrorWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	d := NewWebsocketDialer(models.MStreamConfig{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		Token:          "secret",
		ConnectTimeout: time.Second,
	}, models.MNetworkConfig{}, logger.NewNop())

	_, err := d.Dial(context.Background())
	require.Error(t, err)

	var connErr *helpers.ConnectionError
	assert.ErrorAs(t, err, &connErr)
	assert.NotContains(t, err.Error(), "secret")
	assert.Contains(t, err.Error(), "401")
}

func TestWebsocketDialer_RotatesProxyOnFailure(t *testing.T) {
	d := NewWebsocketDialer(models.MStreamConfig{
		URL:            "ws://127.0.0.1:1",
		ConnectTimeout: 200 * time.Millisecond,
	}, models.MNetworkConfig{Proxies: []string{"127.0.0.1:2", "127.0.0.1:3"}}, logger.NewNop())

	assert.Equal(t, "127.0.0.1:2", d.ProxyManager.Current().Host)
	_, err := d.Dial(context.Background())
	require.Error(t, err)
	assert.Equal(t, "127.0.0.1:3", d.ProxyManager.Current().Host)
}

func TestWebsocketDialer_RejectsOversizedFrame(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 2048)))
		conn.ReadMessage()
	}))
	defer srv.Close()

	d := NewWebsocketDialer(models.MStreamConfig{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		ConnectTimeout: time.Second,
	}, models.MNetworkConfig{}, logger.NewNop())
	assert.Equal(t, int64(MaxFrameBytes), d.ReadLimit)
	d.ReadLimit = 1024

	conn, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.ErrorIs(t, err, websocket.ErrReadLimit)
}

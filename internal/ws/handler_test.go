package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enginebridge/backend/internal/bridge"
	"github.com/enginebridge/backend/internal/logging"
	"github.com/enginebridge/backend/internal/resilience"
)

func streamServer(t *testing.T) (*httptest.Server, *bridge.Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	client := bridge.NewClient(
		bridge.DefaultConfig(),
		bridge.NewWebSocketTransport(),
		resilience.New("bridge", resilience.Settings{}),
		logging.NewNop(),
	)
	handler := NewHandler(bridge.NewExecutor(client, logging.NewNop()), logging.NewNop())

	router := gin.New()
	router.GET("/stream", handler.HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, client
}

func dialStream(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStreamSendsInitialStatus(t *testing.T) {
	srv, _ := streamServer(t)
	conn := dialStream(t, srv)

	var first map[string]interface{}
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "status", first["type"])
}

func TestStreamForwardsBridgeEvents(t *testing.T) {
	srv, client := streamServer(t)
	conn := dialStream(t, srv)

	var first map[string]interface{}
	require.NoError(t, conn.ReadJSON(&first))

	client.Events().Publish(bridge.EventConnected, map[string]interface{}{"addr": "test"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt map[string]interface{}
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "event", evt["type"])
	assert.Equal(t, "bridge", evt["source"])
	assert.Equal(t, bridge.EventConnected, evt["kind"])
}

func TestStreamPongsUnderConcurrentEvents(t *testing.T) {
	srv, client := streamServer(t)
	conn := dialStream(t, srv)

	var first map[string]interface{}
	require.NoError(t, conn.ReadJSON(&first))

	const pings = 50
	go func() {
		for i := 0; i < pings; i++ {
			_ = conn.WriteJSON(map[string]string{"type": "ping"})
		}
	}()
	go func() {
		for i := 0; i < 200; i++ {
			client.Events().Publish(bridge.EventConnected, nil)
		}
	}()

	// Every ping gets a pong even while events stream over the same
	// connection; a read error here means the server side writer tripped.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	pongs := 0
	for pongs < pings {
		var msg map[string]interface{}
		require.NoError(t, conn.ReadJSON(&msg))
		if msg["type"] == "pong" {
			pongs++
		}
	}
	assert.Equal(t, pings, pongs)
}

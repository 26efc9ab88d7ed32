package bridge

import (
	"context"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is a single established connection to the peer. Messages are whole
// frames; framing is the transport's concern.
type Conn interface {
	// ReadMessage blocks until the next frame arrives or the connection fails.
	ReadMessage() ([]byte, error)
	// WriteMessage sends one frame. Callers serialize writes.
	WriteMessage(data []byte) error
	// Close tears the connection down; a blocked ReadMessage returns an error.
	Close() error
}

// Transport establishes connections to the peer. The production transport
// dials the editor plugin's WebSocket server; tests substitute an in-memory
// implementation.
type Transport interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}

// WebSocketTransport dials the peer over WebSocket.
type WebSocketTransport struct {
	dialer *websocket.Dialer
}

// NewWebSocketTransport creates a transport with sane handshake defaults.
func NewWebSocketTransport() *WebSocketTransport {
	return &WebSocketTransport{
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Dial connects to ws://addr/ and wraps the connection.
func (t *WebSocketTransport) Dial(ctx context.Context, addr string) (Conn, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/"}

	conn, resp, err := t.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

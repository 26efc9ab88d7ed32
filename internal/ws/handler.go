package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/enginebridge/backend/internal/bridge"
	"github.com/enginebridge/backend/internal/logging"
	"github.com/enginebridge/backend/internal/pubsub"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Local tool server; tighten when exposed
	},
}

// Handler streams bridge and breaker events to interested clients, so a UI
// can show editor connectivity live without polling /status.
type Handler struct {
	executor *bridge.Executor
	logger   *logging.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(executor *bridge.Executor, logger *logging.Logger) *Handler {
	return &Handler{
		executor: executor,
		logger:   logger.Named("ws"),
	}
}

type inbound struct {
	Type string `json:"type"`
}

// HandleConnection handles WebSocket upgrade and event streaming
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	client := h.executor.Client()

	bridgeEvents, cancelBridge := client.Events().Subscribe(pubsub.KindAll)
	defer cancelBridge()
	breakerEvents, cancelBreaker := client.Breaker().Events().Subscribe(pubsub.KindAll)
	defer cancelBreaker()

	h.send(conn, map[string]interface{}{
		"type":   "status",
		"bridge": client.Status(),
	})

	// Reader: parses pings and status requests, detects client close.
	// gorilla allows a single concurrent writer, so the reader hands its
	// replies to the event loop below instead of writing itself.
	done := make(chan struct{})
	stop := make(chan struct{})
	defer close(stop)
	replies := make(chan map[string]interface{}, 4)
	go func() {
		defer close(done)
		for {
			var msg inbound
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			var reply map[string]interface{}
			switch msg.Type {
			case "ping":
				reply = map[string]interface{}{"type": "pong"}
			case "status":
				reply = map[string]interface{}{
					"type":   "status",
					"bridge": client.Status(),
				}
			default:
				continue
			}
			select {
			case replies <- reply:
			case <-stop:
				return
			}
		}
	}()

	for {
		select {
		case reply := <-replies:
			if h.send(conn, reply) != nil {
				return
			}
		case evt, ok := <-bridgeEvents:
			if !ok || h.forward(conn, "bridge", evt) != nil {
				return
			}
		case evt, ok := <-breakerEvents:
			if !ok || h.forward(conn, "breaker", evt) != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Handler) forward(conn *websocket.Conn, source string, evt pubsub.Event) error {
	return h.send(conn, map[string]interface{}{
		"type":      "event",
		"source":    source,
		"kind":      evt.Kind,
		"payload":   evt.Payload,
		"timestamp": evt.Time.Unix(),
	})
}

func (h *Handler) send(conn *websocket.Conn, data interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(data)
}

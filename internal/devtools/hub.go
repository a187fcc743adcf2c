package devtools

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/waveform-labs/pluginhost/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// feedMessage is a single tapped event, as delivered over the websocket.
type feedMessage struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// eventHub fans every tapped event out to every connected devtools client.
// A message for a client whose send buffer is full (slow reader, or simply
// not draining) is dropped for that client rather than allowed to block
// delivery to the others; the client itself stays registered.
type eventHub struct {
	mu      sync.RWMutex
	clients map[string]chan feedMessage
}

func newEventHub() *eventHub {
	return &eventHub{clients: make(map[string]chan feedMessage)}
}

// broadcast is registered as the runtime's event tap; it must never block.
func (h *eventHub) broadcast(eventName string, data interface{}) {
	msg := feedMessage{Event: eventName, Data: data, Timestamp: time.Now()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, send := range h.clients {
		select {
		case send <- msg:
		default:
			logger.Devtools().Warn().Str("client", id).Msg("devtools feed client too slow, dropping message")
		}
	}
}

func (h *eventHub) register(id string) chan feedMessage {
	ch := make(chan feedMessage, 64)
	h.mu.Lock()
	h.clients[id] = ch
	h.mu.Unlock()
	return ch
}

func (h *eventHub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[id]; ok {
		close(ch)
		delete(h.clients, id)
	}
}

// streamEvents upgrades the request to a websocket and tails every event the
// runtime's bus delivers until the client disconnects. Read-only: messages
// received from the client are drained and discarded, never acted on.
func (s *Server) streamEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	id := fmt.Sprintf("devtools_%d", time.Now().UnixNano())
	send := s.hub.register(id)
	defer s.hub.unregister(id)

	closed := make(chan struct{})
	go drainInbound(conn, closed)

	for {
		select {
		case <-closed:
			return
		case msg, ok := <-send:
			if !ok {
				return
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

// drainInbound reads and discards client messages so a closed socket is
// noticed promptly; it closes done when the connection goes away. Nothing a
// devtools client sends is ever acted on.
func drainInbound(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

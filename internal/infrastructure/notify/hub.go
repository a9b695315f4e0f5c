package notify

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"livecast/internal/core/ports"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans toasts out to websocket subscribers. The most recent
// MaxVisible toasts are replayed to new subscribers so a page joining
// mid-session sees the current state.
type Hub struct {
	logger *zap.SugaredLogger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan Toast
	recent  []Toast
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*websocket.Conn]chan Toast),
	}
}

// ServeWS upgrades the request and streams toasts until the client
// disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}

	send := make(chan Toast, 16)
	h.mu.Lock()
	h.clients[conn] = send
	replay := make([]Toast, len(h.recent))
	copy(replay, h.recent)
	h.mu.Unlock()

	for _, t := range replay {
		select {
		case send <- t:
		default:
		}
	}

	go h.writePump(conn, send)
	go h.readPump(conn)
}

func (h *Hub) writePump(conn *websocket.Conn, send chan Toast) {
	defer h.drop(conn)
	for t := range send {
		if err := conn.WriteJSON(t); err != nil {
			return
		}
	}
}

// readPump discards inbound frames and detects disconnects.
func (h *Hub) readPump(conn *websocket.Conn) {
	defer h.drop(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if send, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(send)
	}
	h.mu.Unlock()
	conn.Close()
}

func (h *Hub) publish(t Toast) string {
	h.mu.Lock()
	h.recent = append(h.recent, t)
	if len(h.recent) > MaxVisible {
		h.recent = h.recent[len(h.recent)-MaxVisible:]
	}
	for conn, send := range h.clients {
		select {
		case send <- t:
		default:
			// slow subscriber, skip this toast
			h.logger.Debugw("toast dropped for slow subscriber", "remote", conn.RemoteAddr())
		}
	}
	h.mu.Unlock()
	return t.ID
}

func (h *Hub) Info(title, message string, opts ...ports.NotifyOption) string {
	return h.publish(newToast(LevelInfo, title, message, opts...))
}

func (h *Hub) Success(title, message string, opts ...ports.NotifyOption) string {
	return h.publish(newToast(LevelSuccess, title, message, opts...))
}

func (h *Hub) Warning(title, message string, opts ...ports.NotifyOption) string {
	return h.publish(newToast(LevelWarning, title, message, opts...))
}

func (h *Hub) Error(title, message string, opts ...ports.NotifyOption) string {
	return h.publish(newToast(LevelError, title, message, opts...))
}

package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

// UpdateEvent tells connected clients that the catalog changed and they
// should refresh their current query.
type UpdateEvent struct {
	Type       string    `json:"type"`
	Source     string    `json:"source"`
	Inserted   int       `json:"inserted"`
	Updated    int       `json:"updated"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Hub fans catalog update events out to websocket subscribers.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[string]*websocket.Conn
	closed  bool
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[string]*websocket.Conn),
	}
}

// Subscribe upgrades the request to a websocket and keeps the connection
// registered until the client goes away or the hub closes.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	id := uuid.NewString()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[id] = conn
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("watch client connected", "client_id", id, "clients", count)

	go h.readLoop(id, conn)
}

// readLoop drains incoming frames so close and ping/pong processing works,
// and unregisters the client when the connection dies.
func (h *Hub) readLoop(id string, conn *websocket.Conn) {
	defer h.remove(id)

	done := make(chan struct{})
	defer close(done)

	go func() {
		pinger := time.NewTicker(pingInterval)
		defer pinger.Stop()
		for {
			select {
			case <-done:
				return
			case <-pinger.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast sends the event to every connected client. Clients that fail
// the write are dropped.
func (h *Hub) Broadcast(event UpdateEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode update event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Warn("dropping watch client", "client_id", id, "error", err)
			conn.Close()
			delete(h.clients, id)
		}
	}
}

// ClientCount reports the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeTimeout))
		conn.Close()
		delete(h.clients, id)
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, ok := h.clients[id]; ok {
		conn.Close()
		delete(h.clients, id)
	}
}

package server

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dotside-studios/nfc-handoff-agent/protocol"
)

// client is a connected WebSocket client. gorilla/websocket allows a single
// concurrent writer per connection, hence writeMu.
type client struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// hub tracks connected clients and broadcasts messages to them.
type hub struct {
	logger  *log.Logger
	mu      sync.RWMutex
	clients map[string]*client
}

func newHub(logger *log.Logger) *hub {
	return &hub{logger: logger, clients: make(map[string]*client)}
}

func (h *hub) register(conn *websocket.Conn) *client {
	c := &client{id: uuid.New().String(), conn: conn}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	return c
}

func (h *hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcast sends a message to every client. Clients that fail are closed
// and dropped.
func (h *hub) broadcast(message protocol.WebSocketMessage) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(message); err != nil {
			h.logger.Printf("WebSocket write error for client %s: %v", c.id, err)
			c.conn.Close()
			h.unregister(c)
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.clients {
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "agent shutting down"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.conn.Close()
		delete(h.clients, id)
	}
}

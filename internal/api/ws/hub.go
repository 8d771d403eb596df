package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pantry/internal/domain"
)

const MessageTypeInventoryUpdate = "inventory_update"

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type InventoryUpdateData struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type conn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

const (
	// DefaultSendBuffer is how many messages a client may fall behind before
	// it is dropped.
	DefaultSendBuffer = 16
	writeWait         = 10 * time.Second
)

type client struct {
	conn conn
	send chan []byte
}

// Hub fans inventory changes out to every connected client. Each client has
// its own send queue drained by a writer goroutine, so a slow reader never
// blocks a broadcast.
type Hub struct {
	connections map[uuid.UUID]*client
	sendBuffer  int
	mu          sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[uuid.UUID]*client),
		sendBuffer:  DefaultSendBuffer,
	}
}

func (h *Hub) Register(c *websocket.Conn) uuid.UUID {
	return h.register(c)
}

func (h *Hub) register(c conn) uuid.UUID {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.New()
	cl := &client{conn: c, send: make(chan []byte, h.sendBuffer)}
	h.connections[id] = cl
	go h.writePump(id, cl)

	fmt.Printf("[Hub] Client %s connected. Total connections: %d\n", id, len(h.connections))
	return id
}

func (h *Hub) writePump(id uuid.UUID, cl *client) {
	for data := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			fmt.Printf("[Hub] Dropping client %s: %v\n", id, err)
			h.Unregister(id)
			return
		}
	}
}

func (h *Hub) Unregister(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.remove(id) {
		fmt.Printf("[Hub] Client %s disconnected. Total connections: %d\n", id, len(h.connections))
	}
}

// remove must be called with h.mu held.
func (h *Hub) remove(id uuid.UUID) bool {
	cl, exists := h.connections[id]
	if !exists {
		return false
	}
	delete(h.connections, id)
	close(cl.send)
	cl.conn.Close()
	return true
}

// Broadcast queues msg for every connection without waiting for the writes.
// Clients whose queue is full are dropped.
func (h *Hub) Broadcast(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, cl := range h.connections {
		select {
		case cl.send <- data:
		default:
			fmt.Printf("[Hub] Dropping slow client %s\n", id)
			h.remove(id)
		}
	}
	return nil
}

// InventoryChanged implements the inventory change notifier.
func (h *Hub) InventoryChanged(_ context.Context, item *domain.InventoryItem) error {
	return h.Broadcast(Message{
		Type: MessageTypeInventoryUpdate,
		Data: InventoryUpdateData{
			Name:     item.Name,
			Quantity: item.Quantity,
		},
	})
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

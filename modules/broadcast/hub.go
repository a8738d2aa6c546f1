package broadcast

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// DefaultSendBuffer is the outbound queue length of a client.
	DefaultSendBuffer = 256
)

// Conn is the part of a websocket connection the hub drives.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client represents a connected WebSocket client.
type Client struct {
	ID   string
	Conn Conn

	send      chan []byte
	closeOnce sync.Once
}

// Frame is the JSON envelope written to clients.
type Frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Hub tracks connected clients and owns their outbound queues.
type Hub struct {
	clients    map[string]*Client
	mu         sync.RWMutex
	sendBuffer int
	dropped    atomic.Uint64
	logger     types.Logger
}

// NewHub creates a new Hub. sendBuffer bounds each client's outbound queue.
func NewHub(sendBuffer int, logger types.Logger) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Hub{
		clients:    make(map[string]*Client),
		sendBuffer: sendBuffer,
		logger:     logger,
	}
}

// NewClient wraps conn for the hub.
func (h *Hub) NewClient(id string, conn Conn) *Client {
	return &Client{
		ID:   id,
		Conn: conn,
		send: make(chan []byte, h.sendBuffer),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	h.logger.Debug("Client registered", "clientID", client.ID)
}

// Unregister removes a client and closes its outbound queue, which ends its
// write pump.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.clients[client.ID]; ok && current == client {
		delete(h.clients, client.ID)
		close(client.send)
		h.logger.Debug("Client unregistered", "clientID", client.ID)
	}
}

// Deliver queues an event for one client. It never blocks: a client whose
// queue is full is disconnected and the event is dropped.
func (h *Hub) Deliver(clientID, eventType string, payload any) bool {
	data, err := json.Marshal(Frame{Type: eventType, Payload: payload})
	if err != nil {
		h.logger.Error("Failed to marshal frame", "type", eventType, "error", err)
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return false
	}

	select {
	case client.send <- data:
		return true
	default:
		h.dropped.Add(1)
		h.logger.Warn("Client send queue full, disconnecting", "clientID", clientID, "type", eventType)
		client.close()
		return false
	}
}

// WritePump writes queued frames and periodic pings to the client. It returns
// when the queue is closed or a write fails.
func (h *Hub) WritePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("Write failed", "clientID", client.ID, "error", err)
				return
			}
		case <-ticker.C:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump reads text frames from the client and passes them to handle until
// the connection closes.
func (h *Hub) ReadPump(client *Client, handle func(data []byte)) {
	client.Conn.SetReadLimit(maxMessageSize)
	_ = client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket read error", "clientID", client.ID, "error", err)
			}
			return
		}
		_ = client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		if msgType != websocket.TextMessage {
			continue
		}
		handle(data)
	}
}

// closeAllClients closes all connected client connections.
func (h *Hub) closeAllClients() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		client.close()
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many frames were dropped because of full queues.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		_ = c.Conn.Close()
	})
}

package notifications

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mixcraft/internal/logging"
	"mixcraft/internal/pipeline"
)

const (
	sendBuffer     = 32
	broadcastDepth = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	readLimit      = 4096
)

// Message is what subscribed websocket clients receive.
type Message struct {
	Event      Event               `json:"event"`
	EntityKind pipeline.EntityKind `json:"entity_kind"`
	EntityID   string              `json:"entity_id"`
	Data       Payload             `json:"data,omitempty"`
	Timestamp  int64               `json:"timestamp"`
}

// Client is one websocket subscriber to a single project or draft.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	room string
}

type broadcast struct {
	room string
	data []byte
}

// Hub tracks websocket subscribers per entity and pushes events to them.
type Hub struct {
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcast
	mu         sync.RWMutex
	done       chan struct{}
	stopOnce   sync.Once
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewHub creates a hub. Call Run before serving clients.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcast, broadcastDepth),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients come from the UI origin; access control
			// belongs to whatever fronts the daemon.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.With(slog.String(logging.FieldComponent, "ws-hub")),
	}
}

// Run processes registrations and broadcasts until ctx ends or Stop is
// called.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClient(client)
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.deliver(msg)
		case <-ctx.Done():
			h.cleanup()
			return
		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop ends Run and disconnects every client.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Publish implements Service. Events without an entity are dropped; a full
// broadcast queue drops the event rather than stalling the dispatcher.
func (h *Hub) Publish(_ context.Context, event Event, payload Payload) error {
	kind, id, ok := payload.Entity()
	if !ok {
		return nil
	}
	data, err := json.Marshal(Message{
		Event:      event,
		EntityKind: kind,
		EntityID:   id,
		Data:       payload,
		Timestamp:  time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- broadcast{room: pipeline.LockKey(kind, id), data: data}:
	default:
		h.logger.Debug("websocket broadcast queue full; dropping event",
			logging.String("event", string(event)),
			logging.String(logging.FieldEntityKind, string(kind)),
		)
	}
	return nil
}

// ServeWS upgrades the request and subscribes the connection to one entity.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, kind pipeline.EntityKind, id string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), room: pipeline.LockKey(kind, id)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

// ClientCount returns the number of subscribers for an entity.
func (h *Hub) ClientCount(kind pipeline.EntityKind, id string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[pipeline.LockKey(kind, id)])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[client.room] == nil {
		h.rooms[client.room] = make(map[*Client]bool)
	}
	h.rooms[client.room][client] = true
	h.logger.Debug("websocket client subscribed", logging.String("room", client.room))
}

// removeClient requires h.mu held.
func (h *Hub) removeClient(client *Client) {
	clients, ok := h.rooms[client.room]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.room)
	}
}

func (h *Hub) deliver(msg broadcast) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.rooms[msg.room] {
		select {
		case client.send <- msg.data:
		default:
			// Slow consumer; disconnect it instead of blocking the hub.
			h.removeClient(client)
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.rooms {
		for client := range clients {
			close(client.send)
		}
	}
	h.rooms = make(map[string]map[*Client]bool)
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// readPump drains client frames so pongs and close frames are processed.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read error", logging.Error(err), logging.String("room", c.room))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

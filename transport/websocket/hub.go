package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The maze client is served from arbitrary origins.
		return true
	},
}

// Client is one websocket connection's transport state: the connection, a
// buffered outbound queue drained by writePump, and the room it is
// subscribed to (empty until the session joins).
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// sessionID identifies this transport session in the registry's weak
	// back-references.
	sessionID string

	// roomCode and closed are guarded by hub.mu.
	roomCode string
	closed   bool

	session *Session
}

// enqueue queues an outbound message without blocking. A slow client whose
// buffer is full loses the message; delivery is at-most-once by design.
func (c *Client) enqueue(message []byte) {
	if message == nil {
		return
	}
	select {
	case c.send <- message:
	default:
	}
}

// Hub maintains the set of active clients grouped by room and fans messages
// out to room members. Unlike the registry, the hub tracks only transport
// subscriptions; player state lives in the registry.
type Hub struct {
	logger *zap.Logger

	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		rooms:  make(map[string]map[*Client]bool),
	}
}

// Join subscribes the client to a room's broadcast group. A client already
// in another room is moved.
func (h *Hub) Join(roomCode string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.closed {
		return
	}
	if client.roomCode != "" && client.roomCode != roomCode {
		h.removeLocked(client)
	}

	if h.rooms[roomCode] == nil {
		h.rooms[roomCode] = make(map[*Client]bool)
	}
	h.rooms[roomCode][client] = true
	client.roomCode = roomCode

	h.logger.Debug("client subscribed",
		zap.String("room", roomCode),
		zap.String("session", client.sessionID),
		zap.Int("clients", len(h.rooms[roomCode])))
}

// Unregister drops the client from its room group and closes its outbound
// queue. Safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.closed {
		return
	}
	h.removeLocked(client)
	client.closed = true
	close(client.send)
}

func (h *Hub) removeLocked(client *Client) {
	if client.roomCode == "" {
		return
	}
	if clients, ok := h.rooms[client.roomCode]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, client.roomCode)
		}
	}
	client.roomCode = ""
}

// Broadcast sends a message to every client in the room except the
// originating one. Clients whose send buffers are full are skipped.
func (h *Hub) Broadcast(roomCode string, message []byte, except *Client) {
	if message == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[roomCode] {
		if client == except {
			continue
		}
		client.enqueue(message)
	}
}

// serveWS upgrades the request and runs the connection's pumps. Each
// connection gets a fresh session handler; the relay wires the registry
// side.
func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request, newSession func(*Client) *Session) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: uuid.NewString(),
	}
	client.session = newSession(client)

	h.logger.Debug("connection opened", zap.String("session", client.sessionID))

	go client.writePump()
	go client.readPump()
}

// readPump pumps inbound messages into the session handler. On any read
// error the connection is torn down: registry cleanup first so peers get
// playerLeft, then hub unregistration.
func (c *Client) readPump() {
	defer func() {
		c.session.disconnect()
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read error",
					zap.String("session", c.sessionID), zap.Error(err))
			}
			break
		}
		c.session.handleMessage(message)
	}
}

// writePump pumps queued messages to the websocket connection and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

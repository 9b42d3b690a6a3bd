package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wricardo/chipgrid/game/engine"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Stream event names
const (
	EventStateUpdate   = "state_update"
	EventSessionClosed = "session_closed"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Renderers connect from any origin
		return true
	},
}

// Message is one frame of a session's stream. A state update carries the
// full game state and the engine events that produced it, in order.
type Message struct {
	SessionID string            `json:"session_id"`
	GameState *engine.GameState `json:"game_state,omitempty"`
	Events    []engine.Event    `json:"events,omitempty"`
	Event     string            `json:"event,omitempty"`
	Data      interface{}       `json:"data,omitempty"`
}

// Client is one renderer watching a session
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
}

// Hub fans session updates out to renderers. Session IDs are matched
// case-insensitively, like the session manager does.
type Hub struct {
	mu sync.RWMutex

	// Registered clients by session key
	sessions map[string]map[*Client]bool

	// Last state update per session, replayed to clients that join late
	frames map[string][]byte

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Client]bool),
		frames:     make(map[string][]byte),
		broadcast:  make(chan *Message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func sessionKey(id string) string {
	return strings.ToLower(id)
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// ServeWS upgrades the request and attaches the renderer to a session
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, engine.WebSocketBufferSize),
		sessionID: sessionKey(sessionID),
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// BroadcastToSession sends a game state update to all clients in a session
func (h *Hub) BroadcastToSession(sessionID string, state *engine.GameState) {
	h.BroadcastUpdate(sessionID, state, nil)
}

// BroadcastUpdate sends a state update with the events that led to it. It is
// delivered synchronously so frames keep the order of the moves that made them.
func (h *Hub) BroadcastUpdate(sessionID string, state *engine.GameState, events []engine.Event) {
	h.broadcastMessage(&Message{
		SessionID: sessionID,
		GameState: state,
		Events:    events,
		Event:     EventStateUpdate,
	})
}

// BroadcastEvent queues a custom event for all clients in a session
func (h *Hub) BroadcastEvent(sessionID string, event string, data interface{}) {
	h.broadcast <- &Message{
		SessionID: sessionID,
		Event:     event,
		Data:      data,
	}
}

// CloseSession tells every renderer of the session that it is gone, then
// disconnects them and forgets the session's last frame
func (h *Hub) CloseSession(sessionID string) {
	data, err := json.Marshal(&Message{SessionID: sessionID, Event: EventSessionClosed})
	if err != nil {
		log.Printf("[WS] failed to marshal message: %v", err)
		return
	}

	key := sessionKey(sessionID)
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.frames, key)
	for client := range h.sessions[key] {
		select {
		case client.send <- data:
		default:
		}
		h.removeClient(client)
	}
}

// ClientCount returns the number of clients watching a session
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionKey(sessionID)])
}

// registerClient adds a client to its session and replays the last frame
func (h *Hub) registerClient(client *Client) {
	client.sessionID = sessionKey(client.sessionID)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[client.sessionID] == nil {
		h.sessions[client.sessionID] = make(map[*Client]bool)
	}
	h.sessions[client.sessionID][client] = true

	if frame, ok := h.frames[client.sessionID]; ok {
		select {
		case client.send <- frame:
		default:
		}
	}

	log.Printf("[WS] client registered for session %s (total clients: %d)",
		client.sessionID, len(h.sessions[client.sessionID]))
}

// unregisterClient removes a client from a session
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeClient(client)
}

// removeClient requires h.mu held for writing
func (h *Hub) removeClient(client *Client) {
	clients, ok := h.sessions[client.sessionID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)

	if len(clients) == 0 {
		delete(h.sessions, client.sessionID)
	}

	log.Printf("[WS] client unregistered from session %s (remaining clients: %d)",
		client.sessionID, len(clients))
}

// broadcastMessage sends a message to all clients in a session. Clients
// whose send buffer is full are dropped; they can reconnect and catch up
// from the replayed frame.
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] failed to marshal message: %v", err)
		return
	}

	key := sessionKey(message.SessionID)
	h.mu.Lock()
	defer h.mu.Unlock()

	if message.Event == EventStateUpdate {
		h.frames[key] = data
	}
	for client := range h.sessions[key] {
		select {
		case client.send <- data:
		default:
			h.removeClient(client)
		}
	}
}

// readPump keeps the connection alive; renderers only listen
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] read error: %v", err)
			}
			return
		}
	}
}

// writePump drains the send buffer to the connection and pings the peer
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
				// Closed by the hub: session gone or client too slow
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

package broadcast

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// Conn is the write side of a client connection. Satisfied by
// *websocket.Conn; tests substitute fakes.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one connected session as seen by the delivery plane.
type Client struct {
	SessionID string
	UserID    string
	Username  string
	RoomID    string
	Conn      Conn
}

// Delivery is a frame addressed to a room, optionally excluding one session
// (a sender never receives its own relayed copy).
type Delivery struct {
	RoomID  string
	Exclude string
	Frame   []byte
}

// Hub fans frames out to room members. A single run loop serializes
// register, unregister and delivery handling, which preserves per-room
// arrival order without locking on the hot path.
type Hub struct {
	clients    map[string]*Client         // sessionID -> Client
	rooms      map[string]map[string]bool // roomID -> set of sessionIDs
	register   chan *Client
	unregister chan string
	deliveries chan Delivery
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]bool),
		register:   make(chan *Client),
		unregister: make(chan string),
		deliveries: make(chan Delivery, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. It accepts a context for graceful shutdown.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			close(h.done)
			return
		case client := <-h.register:
			h.handleRegister(client)
		case sessionID := <-h.unregister:
			h.handleUnregister(sessionID)
		case d := <-h.deliveries:
			h.handleDelivery(d)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(sessionID string) {
	h.unregister <- sessionID
}

// Deliver queues a frame for fan-out to a room. Fire-and-forget: if the
// hub's queue is being drained slower than frames arrive, the call blocks
// until the run loop catches up.
func (h *Hub) Deliver(roomID, exclude string, frame []byte) {
	h.deliveries <- Delivery{RoomID: roomID, Exclude: exclude, Frame: frame}
}

// JoinRoom moves a client into a room, leaving any previous room first.
func (h *Hub) JoinRoom(sessionID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[sessionID]
	if !ok {
		return
	}

	if client.RoomID != "" {
		h.removeFromRoomLocked(client.RoomID, sessionID)
	}

	client.RoomID = roomID
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]bool)
	}
	h.rooms[roomID][sessionID] = true
}

// LeaveRoom removes a client from its current room.
func (h *Hub) LeaveRoom(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[sessionID]
	if !ok || client.RoomID == "" {
		return
	}

	h.removeFromRoomLocked(client.RoomID, sessionID)
	client.RoomID = ""
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomClientCount returns the number of clients in a room.
func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.SessionID] = client
	if client.RoomID != "" {
		if h.rooms[client.RoomID] == nil {
			h.rooms[client.RoomID] = make(map[string]bool)
		}
		h.rooms[client.RoomID][client.SessionID] = true
	}
}

func (h *Hub) handleUnregister(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[sessionID]
	if !ok {
		return
	}
	if client.RoomID != "" {
		h.removeFromRoomLocked(client.RoomID, sessionID)
	}
	delete(h.clients, sessionID)
}

func (h *Hub) handleDelivery(d Delivery) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sessionIDs, ok := h.rooms[d.RoomID]
	if !ok {
		return
	}

	for sessionID := range sessionIDs {
		if sessionID == d.Exclude {
			continue
		}
		client, ok := h.clients[sessionID]
		if !ok {
			continue
		}
		// Best-effort: a recipient whose transport fails mid-broadcast
		// simply loses this copy.
		if err := client.Conn.WriteMessage(websocket.TextMessage, d.Frame); err != nil {
			slog.Warn("hub: dropped frame for client", "sessionID", sessionID, "error", err)
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		_ = client.Conn.Close()
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]bool)
}

func (h *Hub) removeFromRoomLocked(roomID, sessionID string) {
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

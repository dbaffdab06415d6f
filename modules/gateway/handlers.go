package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/chat-exchange/domain/chat"
	"github.com/example/chat-exchange/middleware/ratelimit"
	"github.com/example/chat-exchange/modules/archive"
	"github.com/example/chat-exchange/modules/auth"
	"github.com/example/chat-exchange/modules/broadcast"
	"github.com/example/chat-exchange/modules/exchange"
	"github.com/example/chat-exchange/protocol"
)

// safeConn serializes writes to a connection. Frames originate from two
// goroutines, the connection's read loop (greetings, acks, error events) and
// the hub run loop (fan-out), and the underlying conn permits one writer at
// a time.
type safeConn struct {
	mu   sync.Mutex
	conn broadcast.Conn
}

func (c *safeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

func (c *safeConn) Close() error {
	return c.conn.Close()
}

// Handlers holds the WebSocket and REST handlers.
type Handlers struct {
	exchange *exchange.Module
	hub      *broadcast.Hub
	auth     *auth.Module
	archive  *archive.Module    // nil when archiving is disabled
	limiter  *ratelimit.Limiter // nil when rate limiting is disabled
	chatPort exchange.ChatPort
	greeting string
	logger   types.Logger
}

// HandleWebSocket runs one connection's lifecycle: register the session,
// loop over inbound frames, and tear everything down on read error or close.
// Teardown removes the client from the hub before the exchange publishes
// UserLeft, so the leaver is never a fan-out target for its own departure.
func (h *Handlers) HandleWebSocket(c *websocket.Conn) {
	sessionID := uuid.New().String()
	userID, _ := c.Locals(localUserID).(string)
	username, _ := c.Locals(localUsername).(string)
	ws := &safeConn{conn: c}

	h.exchange.Register(chat.Session{
		ID:       sessionID,
		UserID:   userID,
		Username: username,
		State:    chat.StateConnecting,
	})
	h.hub.Register(&broadcast.Client{
		SessionID: sessionID,
		UserID:    userID,
		Username:  username,
		Conn:      ws,
	})

	defer func() {
		h.hub.Unregister(sessionID)
		h.exchange.Unregister(sessionID)
		c.Close()
	}()

	h.logger.Info("WebSocket connected", "sessionID", sessionID, "userID", userID)

	for {
		_, frame, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error", "sessionID", sessionID, "error", err)
			}
			break
		}

		env, err := protocol.Decode(frame)
		if err != nil {
			h.sendError(ws, "invalid message format")
			continue
		}

		h.dispatch(ws, sessionID, env)
	}

	h.logger.Info("WebSocket disconnected", "sessionID", sessionID)
}

func (h *Handlers) dispatch(c broadcast.Conn, sessionID string, env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeJoinRoom:
		h.handleJoinRoom(c, sessionID, env.Payload)
	case protocol.TypeSendMessage:
		h.handleSendMessage(c, sessionID, env.Payload)
	default:
		h.sendError(c, "unknown event type: "+env.Type)
	}
}

func (h *Handlers) handleJoinRoom(c broadcast.Conn, sessionID string, payload json.RawMessage) {
	var req protocol.JoinRoomPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(c, "invalid joinRoom payload")
		return
	}

	if req.UserID != "" {
		h.exchange.Registry().BindIdentity(sessionID, req.UserID, "")
	}

	res, err := h.exchange.Join(sessionID, req.Room)
	if err != nil {
		h.sendError(c, err.Error())
		return
	}
	if !res.Joined {
		return // idempotent re-join, nothing to announce
	}

	h.hub.JoinRoom(sessionID, req.Room)

	if h.greeting != "" {
		msg := h.exchange.SystemMessage(req.Room, h.greeting)
		frame, err := protocol.EncodeMessage(msg)
		if err != nil {
			h.logger.Error("Failed to encode greeting", "error", err)
			return
		}
		// Greeting goes to the joiner only. It is not history replay.
		if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.logger.Warn("Failed to send greeting", "sessionID", sessionID, "error", err)
		}
	}
}

func (h *Handlers) handleSendMessage(c broadcast.Conn, sessionID string, payload json.RawMessage) {
	var req protocol.SendMessagePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(c, "invalid sendMessage payload")
		return
	}

	if h.limiter != nil {
		res, err := h.limiter.Allow(context.Background(), sessionID)
		if err != nil {
			// Redis trouble degrades open; delivery matters more than the cap.
			h.logger.Warn("Rate limiter unavailable", "sessionID", sessionID, "error", err)
		} else if !res.Allowed {
			h.sendError(c, "rate limit exceeded, slow down")
			return
		}
	}

	msg, err := h.exchange.Send(sessionID, req.Room, req.Text)
	if err != nil {
		h.sendError(c, err.Error())
		return
	}

	frame, err := protocol.Encode(protocol.TypeMessageSent, protocol.AckPayload{ID: msg.ID})
	if err != nil {
		h.logger.Error("Failed to encode ack", "error", err)
		return
	}
	if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
		h.logger.Warn("Failed to send ack", "sessionID", sessionID, "error", err)
	}
}

// sendError replies with a non-fatal error event; the connection stays open.
func (h *Handlers) sendError(c broadcast.Conn, reason string) {
	if err := c.WriteMessage(websocket.TextMessage, protocol.EncodeError(reason)); err != nil {
		h.logger.Warn("Failed to send error event", "error", err)
	}
}

// REST handlers

// IssueToken handles POST /api/v1/tokens.
func (h *Handlers) IssueToken(c *fiber.Ctx) error {
	var req TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "invalid request body",
		})
	}
	if req.UserName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "userName is required",
		})
	}

	userID, token, err := h.auth.IssueGuestToken(req.UserName)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "server_error",
			Message: "failed to issue token",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(TokenResponse{
		UserID:   userID,
		UserName: req.UserName,
		Token:    token,
	})
}

// ListRooms handles GET /api/v1/rooms.
func (h *Handlers) ListRooms(c *fiber.Ctx) error {
	rooms, err := h.chatPort.ListRooms(c.Context())
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(RoomListResponse{Rooms: rooms, Total: len(rooms)})
}

// RoomMembers handles GET /api/v1/rooms/:id/members.
func (h *Handlers) RoomMembers(c *fiber.Ctx) error {
	roomID := c.Params("id")
	sessions, found, err := h.chatPort.RoomMembers(c.Context(), roomID)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "room not found",
		})
	}
	members := memberViews(sessions)
	return c.JSON(MemberListResponse{RoomID: roomID, Members: members, Total: len(members)})
}

// memberViews projects sessions onto the REST member payload.
func memberViews(sessions []chat.Session) []Member {
	members := make([]Member, 0, len(sessions))
	for _, s := range sessions {
		members = append(members, Member{
			UserID:   s.UserID,
			UserName: s.Username,
			State:    s.State,
		})
	}
	return members
}

// RoomArchive handles GET /api/v1/rooms/:id/archive.
func (h *Handlers) RoomArchive(c *fiber.Ctx) error {
	if h.archive == nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "archive is disabled",
		})
	}

	roomID := c.Params("id")
	limit := c.QueryInt("limit", 50)

	records, err := h.archive.Repository().RecentByRoom(roomID, limit)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Error:   "not_found",
				Message: "no archived messages for room",
			})
		}
		return fiber.ErrInternalServerError
	}

	return c.JSON(ArchiveResponse{RoomID: roomID, Messages: records, Total: len(records)})
}

// HealthCheck handles GET /health.
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "healthy",
		"service":  "chat-exchange",
		"sessions": h.hub.ClientCount(),
	})
}

package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"

	"github.com/example/chat-exchange/domain/chat"
	"github.com/example/chat-exchange/events"
)

// Module is the exchange core: room membership plus the message relay.
// Accepted messages and presence changes are published on the event bus;
// the broadcast module turns them into WebSocket fan-out.
type Module struct {
	registry *Registry
	eventBus mono.EventBus
	logger   types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the exchange module.
func NewModule(logger types.Logger) *Module {
	return &Module{
		registry: NewRegistry(),
		logger:   logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "exchange"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageRelayedV1.ToBase(),
		events.UserJoinedV1.ToBase(),
		events.UserLeftV1.ToBase(),
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceListRooms,
		json.Unmarshal,
		json.Marshal,
		m.listRooms,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListRooms, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceRoomMembers,
		json.Unmarshal,
		json.Marshal,
		m.roomMembers,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRoomMembers, err)
	}

	m.logger.Info("Registered exchange services", "services", []string{ServiceListRooms, ServiceRoomMembers})
	return nil
}

// Start initializes the module.
func (m *Module) Start(_ context.Context) error {
	if m.eventBus == nil {
		m.logger.Warn("Event bus not set, events will not be published")
	}
	m.logger.Info("Exchange module started")
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Exchange module stopped", "sessions", m.registry.SessionCount())
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"sessions": m.registry.SessionCount(),
			"rooms":    len(m.registry.Rooms()),
		},
	}
}

// Register adds an open session to the exchange.
func (m *Module) Register(sess chat.Session) {
	m.registry.Register(sess)
	m.logger.Info("Session registered", "sessionID", sess.ID, "userID", sess.UserID)
}

// Unregister closes a session. If the session occupied a room, a UserLeft
// event is published for the remaining members.
func (m *Module) Unregister(sessionID string) {
	sess, ok := m.registry.Unregister(sessionID)
	if !ok {
		return
	}

	if sess.RoomID != "" {
		m.publishUserLeft(sess, sess.RoomID)
	}
	m.logger.Info("Session unregistered", "sessionID", sessionID, "roomID", sess.RoomID)
}

// Join adds a session to a room and publishes a UserJoined event to existing
// members. Re-joining the current room is a no-op and publishes nothing.
func (m *Module) Join(sessionID, roomID string) (JoinResult, error) {
	res, err := m.registry.Join(sessionID, roomID)
	if err != nil {
		return JoinResult{}, err
	}
	if !res.Joined {
		return res, nil
	}

	if res.PreviousRoom != "" {
		m.publishUserLeft(res.Session, res.PreviousRoom)
	}

	if m.eventBus != nil {
		event := events.UserJoinedEvent{
			RoomID:    roomID,
			SessionID: sessionID,
			UserID:    res.Session.UserID,
			Username:  res.Session.Username,
			Timestamp: time.Now().UTC(),
		}
		if err := events.UserJoinedV1.Publish(m.eventBus, event, nil); err != nil {
			m.logger.Warn("Failed to publish UserJoined event", "error", err)
		}
	}

	m.logger.Info("Session joined room", "sessionID", sessionID, "roomID", roomID)
	return res, nil
}

// Leave removes a session from its room and publishes a UserLeft event.
func (m *Module) Leave(sessionID string) bool {
	sess, ok := m.registry.Leave(sessionID)
	if !ok {
		return false
	}

	m.publishUserLeft(sess, sess.RoomID)
	m.logger.Info("Session left room", "sessionID", sessionID, "roomID", sess.RoomID)
	return true
}

// Send stamps a message and publishes it for fan-out. Delivery is
// best-effort, at-most-once: there is no acknowledgement from recipients and
// no retry for recipients whose transport drops mid-broadcast.
func (m *Module) Send(sessionID, roomID, text string) (chat.Message, error) {
	msg, err := m.registry.Send(sessionID, roomID, text)
	if err != nil {
		return chat.Message{}, err
	}

	if m.eventBus != nil {
		event := events.MessageRelayedEvent{
			Message:         msg,
			SenderSessionID: sessionID,
		}
		if err := events.MessageRelayedV1.Publish(m.eventBus, event, nil); err != nil {
			return chat.Message{}, fmt.Errorf("failed to publish message: %w", err)
		}
	}

	m.logger.Debug("Message relayed", "messageID", msg.ID, "roomID", msg.RoomID)
	return msg, nil
}

// SystemMessage builds a server-originated message for a room, used for the
// greeting sent to a session right after it joins.
func (m *Module) SystemMessage(roomID, text string) chat.Message {
	return chat.Message{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Body:      text,
		Sender:    chat.RoleSystem,
		Timestamp: time.Now().UTC(),
	}
}

// Registry exposes the underlying registry for read access.
func (m *Module) Registry() *Registry {
	return m.registry
}

func (m *Module) publishUserLeft(sess chat.Session, roomID string) {
	if m.eventBus == nil {
		return
	}
	event := events.UserLeftEvent{
		RoomID:    roomID,
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Username:  sess.Username,
		Timestamp: time.Now().UTC(),
	}
	if err := events.UserLeftV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish UserLeft event", "error", err)
	}
}

// Service handlers

func (m *Module) listRooms(_ context.Context, _ ListRoomsRequest, _ *mono.Msg) (ListRoomsResponse, error) {
	return ListRoomsResponse{Rooms: m.registry.Rooms()}, nil
}

func (m *Module) roomMembers(_ context.Context, req RoomMembersRequest, _ *mono.Msg) (RoomMembersResponse, error) {
	members := m.registry.Members(req.RoomID)
	return RoomMembersResponse{
		RoomID:  req.RoomID,
		Members: members,
		Found:   members != nil,
	}, nil
}

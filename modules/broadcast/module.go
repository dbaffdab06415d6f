package broadcast

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/chat-exchange/events"
	"github.com/example/chat-exchange/protocol"
)

// Module consumes exchange events and fans them out to WebSocket clients
// through the hub.
type Module struct {
	hub       *Hub
	cancelHub context.CancelFunc
	logger    types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new broadcast module.
func NewModule(logger types.Logger) *Module {
	return &Module{
		hub:    NewHub(),
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "broadcast"
}

// Start launches the hub run loop.
func (m *Module) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.hub.Run(ctx)
	m.logger.Info("Broadcast module started")
	return nil
}

// Stop shuts the hub down and closes remaining connections.
func (m *Module) Stop(_ context.Context) error {
	clientCount := m.hub.ClientCount()
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait()
	}
	m.logger.Info("Broadcast module stopped", "clientsClosed", clientCount)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connectedClients": m.hub.ClientCount(),
		},
	}
}

// RegisterEventConsumers registers handlers for exchange events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageRelayedV1, m.handleMessageRelayed, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageRelayed consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserJoinedV1, m.handleUserJoined, m,
	); err != nil {
		return fmt.Errorf("failed to register UserJoined consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserLeftV1, m.handleUserLeft, m,
	); err != nil {
		return fmt.Errorf("failed to register UserLeft consumer: %w", err)
	}

	m.logger.Info("Registered broadcast event consumers", "events", []string{"MessageRelayed", "UserJoined", "UserLeft"})
	return nil
}

// Hub returns the WebSocket hub for the gateway to register clients on.
func (m *Module) Hub() *Hub {
	return m.hub
}

func (m *Module) handleMessageRelayed(_ context.Context, event events.MessageRelayedEvent, _ *mono.Msg) error {
	frame, err := protocol.EncodeMessage(event.Message)
	if err != nil {
		m.logger.Error("Failed to encode relayed message", "error", err)
		return nil // not retryable
	}

	m.hub.Deliver(event.Message.RoomID, event.SenderSessionID, frame)
	return nil
}

func (m *Module) handleUserJoined(_ context.Context, event events.UserJoinedEvent, _ *mono.Msg) error {
	frame, err := protocol.Encode(protocol.TypeUserJoined, protocol.PresencePayload{
		UserID:  event.UserID,
		Message: presenceNotice(event.Username, event.UserID, "joined the room"),
	})
	if err != nil {
		m.logger.Error("Failed to encode userJoined", "error", err)
		return nil
	}

	m.hub.Deliver(event.RoomID, event.SessionID, frame)
	return nil
}

func (m *Module) handleUserLeft(_ context.Context, event events.UserLeftEvent, _ *mono.Msg) error {
	frame, err := protocol.Encode(protocol.TypeUserLeft, protocol.PresencePayload{
		UserID:  event.UserID,
		Message: presenceNotice(event.Username, event.UserID, "left the room"),
	})
	if err != nil {
		m.logger.Error("Failed to encode userLeft", "error", err)
		return nil
	}

	m.hub.Deliver(event.RoomID, event.SessionID, frame)
	return nil
}

// presenceNotice renders the informational message carried by presence
// events. Anonymous sessions are announced generically.
func presenceNotice(username, userID, action string) string {
	name := username
	if name == "" {
		name = userID
	}
	if name == "" {
		name = "A guest"
	}
	return name + " " + action
}

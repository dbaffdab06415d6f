package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"

	"github.com/example/chat-exchange/domain/chat"
)

// MessageRelayedEvent is emitted when the exchange accepts a message for
// fan-out. SenderSessionID lets the delivery plane exclude the sender.
type MessageRelayedEvent struct {
	Message         chat.Message `json:"message"`
	SenderSessionID string       `json:"senderSessionId"`
}

// UserJoinedEvent is emitted when a session joins a room.
type UserJoinedEvent struct {
	RoomID    string    `json:"room"`
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId,omitempty"`
	Username  string    `json:"userName,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// UserLeftEvent is emitted when a session leaves a room, either explicitly
// or because its connection closed.
type UserLeftEvent struct {
	RoomID    string    `json:"room"`
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId,omitempty"`
	Username  string    `json:"userName,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the exchange domain.
var (
	MessageRelayedV1 = helper.EventDefinition[MessageRelayedEvent](
		"exchange",
		"MessageRelayed",
		"v1",
	)

	UserJoinedV1 = helper.EventDefinition[UserJoinedEvent](
		"exchange",
		"UserJoined",
		"v1",
	)

	UserLeftV1 = helper.EventDefinition[UserLeftEvent](
		"exchange",
		"UserLeft",
		"v1",
	)
)

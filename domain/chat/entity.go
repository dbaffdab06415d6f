package chat

import "time"

// SessionState describes the lifecycle of a connection.
// Transitions: connecting -> open -> closed. A reconnect is a fresh Session.
type SessionState string

const (
	StateConnecting SessionState = "connecting"
	StateOpen       SessionState = "open"
	StateClosed     SessionState = "closed"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser   Role = "user"
	RoleAI     Role = "ai"
	RoleSystem Role = "system"
)

// Session represents one connected client. The session identity is
// transport-assigned and distinct from the (optional) user identity.
type Session struct {
	ID       string       `json:"id"`
	UserID   string       `json:"userId,omitempty"`
	Username string       `json:"userName,omitempty"`
	RoomID   string       `json:"room,omitempty"`
	State    SessionState `json:"state"`
}

// Room is a named channel grouping sessions. Rooms are created implicitly on
// first join and dropped once the last member leaves.
type Room struct {
	ID        string    `json:"room"`
	Members   int       `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is a single unit of communication. Immutable once created; the ID
// and timestamp are assigned by the exchange, not the sender.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room"`
	SessionID string    `json:"-"`
	UserID    string    `json:"userId,omitempty"`
	Username  string    `json:"userName,omitempty"`
	Body      string    `json:"text"`
	Sender    Role      `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

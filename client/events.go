package client

import "github.com/example/chat-exchange/domain/chat"

// Event is the closed set of things a connection can report. Consumers read
// a single Events() stream and switch on the concrete type, so the taxonomy
// is handled exhaustively instead of through named callback registration.
type Event interface {
	isEvent()
}

// Connected reports that the transport handshake completed and the session
// is open.
type Connected struct {
	SessionOpen bool
}

// Disconnected reports that the transport closed. Err is nil for a clean
// close. The event stream ends after this event; reconnecting starts a
// fresh session.
type Disconnected struct {
	Err error
}

// MessageReceived carries a relayed message from another room member.
type MessageReceived struct {
	Message chat.Message
}

// UserJoined reports another member joining the room.
type UserJoined struct {
	UserID string
	Notice string
}

// UserLeft reports a member leaving the room.
type UserLeft struct {
	UserID string
	Notice string
}

// Acked carries the server-assigned id for a message this client sent.
type Acked struct {
	MessageID string
}

// ProtocolError reports a non-fatal error event from the server; the
// connection stays open.
type ProtocolError struct {
	Reason string
}

func (Connected) isEvent()       {}
func (Disconnected) isEvent()    {}
func (MessageReceived) isEvent() {}
func (UserJoined) isEvent()      {}
func (UserLeft) isEvent()        {}
func (Acked) isEvent()           {}
func (ProtocolError) isEvent()   {}

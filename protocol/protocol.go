// Package protocol defines the wire envelope exchanged over the WebSocket
// transport, shared by the gateway and the Go client.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/example/chat-exchange/domain/chat"
)

// Client-to-server event types.
const (
	TypeJoinRoom    = "joinRoom"
	TypeSendMessage = "sendMessage"
)

// Server-to-client event types.
const (
	TypeReceiveMessage = "receiveMessage"
	TypeUserJoined     = "userJoined"
	TypeUserLeft       = "userLeft"
	TypeMessageSent    = "messageSent"
	TypeError          = "error"
)

// Envelope wraps every frame on the wire.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// JoinRoomPayload is the payload of a joinRoom event.
type JoinRoomPayload struct {
	UserID string `json:"userId,omitempty"`
	Room   string `json:"room"`
}

// SendMessagePayload is the payload of a sendMessage event. The id, sender
// and timestamp fields are advisory: the exchange re-stamps the message with
// a server-assigned id and a server-observed timestamp.
type SendMessagePayload struct {
	ID        string    `json:"id,omitempty"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	UserName  string    `json:"userName,omitempty"`
	Room      string    `json:"room,omitempty"`
}

// PresencePayload is the payload of userJoined and userLeft events.
type PresencePayload struct {
	UserID  string `json:"userId,omitempty"`
	Message string `json:"message"`
}

// AckPayload is the payload of a messageSent acknowledgement. It carries the
// server-assigned id back to the sender.
type AckPayload struct {
	ID string `json:"id"`
}

// Encode marshals an event with its payload into a wire frame.
func Encode(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: eventType, Payload: raw})
}

// EncodeMessage builds a receiveMessage frame for a relayed message.
func EncodeMessage(msg chat.Message) ([]byte, error) {
	return Encode(TypeReceiveMessage, msg)
}

// EncodeError builds an error frame. Errors are non-fatal protocol replies;
// the connection stays open.
func EncodeError(reason string) []byte {
	frame, _ := json.Marshal(Envelope{Type: TypeError, Error: reason})
	return frame
}

// Decode parses a wire frame into an envelope.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(frame, &env)
	return env, err
}

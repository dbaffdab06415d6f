package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/example/chat-exchange/domain/chat"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		payload   any
	}{
		{
			name:      "joinRoom",
			eventType: TypeJoinRoom,
			payload:   JoinRoomPayload{UserID: "u1", Room: "support"},
		},
		{
			name:      "sendMessage",
			eventType: TypeSendMessage,
			payload:   SendMessagePayload{Text: "hello", Room: "support"},
		},
		{
			name:      "userJoined",
			eventType: TypeUserJoined,
			payload:   PresencePayload{UserID: "u1", Message: "Alice joined the room"},
		},
		{
			name:      "messageSent",
			eventType: TypeMessageSent,
			payload:   AckPayload{ID: "m1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.eventType, tt.payload)
			if err != nil {
				t.Fatalf("Encode() failed: %v", err)
			}

			env, err := Decode(frame)
			if err != nil {
				t.Fatalf("Decode() failed: %v", err)
			}
			if env.Type != tt.eventType {
				t.Errorf("Decode() type = %q, want %q", env.Type, tt.eventType)
			}
			if len(env.Payload) == 0 {
				t.Error("Decode() payload is empty")
			}
		})
	}
}

func TestEncodeMessage_WireFieldNames(t *testing.T) {
	msg := chat.Message{
		ID:        "m1",
		RoomID:    "support",
		SessionID: "s1",
		UserID:    "u1",
		Username:  "Alice",
		Body:      "hello",
		Sender:    chat.RoleUser,
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	frame, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage() failed: %v", err)
	}

	env, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if env.Type != TypeReceiveMessage {
		t.Errorf("type = %q, want %q", env.Type, TypeReceiveMessage)
	}

	var fields map[string]any
	if err := json.Unmarshal(env.Payload, &fields); err != nil {
		t.Fatalf("payload unmarshal failed: %v", err)
	}

	for _, key := range []string{"id", "room", "text", "sender", "userId", "userName", "timestamp"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("payload is missing wire field %q", key)
		}
	}
	// The session identity is transport-internal and never leaves the server.
	if _, ok := fields["sessionId"]; ok {
		t.Error("payload leaks the session identifier")
	}
	if fields["text"] != "hello" {
		t.Errorf("payload text = %v, want hello", fields["text"])
	}
}

func TestEncodeError(t *testing.T) {
	frame := EncodeError("rate limit exceeded")

	env, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if env.Type != TypeError {
		t.Errorf("type = %q, want %q", env.Type, TypeError)
	}
	if env.Error != "rate limit exceeded" {
		t.Errorf("error = %q, want %q", env.Error, "rate limit exceeded")
	}
	if len(env.Payload) != 0 {
		t.Errorf("error frame carries payload: %s", env.Payload)
	}
}

func TestDecode_MalformedFrame(t *testing.T) {
	if _, err := Decode([]byte(`{not json`)); err == nil {
		t.Error("Decode() accepted a malformed frame")
	}
}

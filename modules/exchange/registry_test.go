package exchange

import (
	"errors"
	"strings"
	"testing"

	"github.com/example/chat-exchange/domain/chat"
)

func openSession(t *testing.T, r *Registry, id, userID, username string) {
	t.Helper()
	r.Register(chat.Session{ID: id, UserID: userID, Username: username})
}

func TestRegistry_Join(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(r *Registry)
		sessionID  string
		roomID     string
		wantErr    error
		wantJoined bool
		wantPrev   string
	}{
		{
			name:       "first join creates the room",
			setup:      func(r *Registry) { openSession(t, r, "s1", "u1", "Alice") },
			sessionID:  "s1",
			roomID:     "support",
			wantJoined: true,
		},
		{
			name: "rejoining the same room is a no-op",
			setup: func(r *Registry) {
				openSession(t, r, "s1", "u1", "Alice")
				if _, err := r.Join("s1", "support"); err != nil {
					t.Fatalf("setup join failed: %v", err)
				}
			},
			sessionID:  "s1",
			roomID:     "support",
			wantJoined: false,
		},
		{
			name: "joining another room moves the session",
			setup: func(r *Registry) {
				openSession(t, r, "s1", "u1", "Alice")
				if _, err := r.Join("s1", "support"); err != nil {
					t.Fatalf("setup join failed: %v", err)
				}
			},
			sessionID:  "s1",
			roomID:     "sales",
			wantJoined: true,
			wantPrev:   "support",
		},
		{
			name:      "unknown session",
			setup:     func(r *Registry) {},
			sessionID: "ghost",
			roomID:    "support",
			wantErr:   ErrInvalidSession,
		},
		{
			name:      "empty room id",
			setup:     func(r *Registry) { openSession(t, r, "s1", "u1", "Alice") },
			sessionID: "s1",
			roomID:    "",
			wantErr:   ErrRoomIDEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			tt.setup(r)

			res, err := r.Join(tt.sessionID, tt.roomID)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Join() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Join() unexpected error: %v", err)
			}
			if res.Joined != tt.wantJoined {
				t.Errorf("Join() Joined = %v, want %v", res.Joined, tt.wantJoined)
			}
			if res.PreviousRoom != tt.wantPrev {
				t.Errorf("Join() PreviousRoom = %q, want %q", res.PreviousRoom, tt.wantPrev)
			}
		})
	}
}

func TestRegistry_Join_Idempotent(t *testing.T) {
	r := NewRegistry()
	openSession(t, r, "s1", "u1", "Alice")

	for i := 0; i < 3; i++ {
		if _, err := r.Join("s1", "support"); err != nil {
			t.Fatalf("Join() attempt %d failed: %v", i, err)
		}
	}

	members := r.Members("support")
	if len(members) != 1 {
		t.Fatalf("Members() count = %d, want 1", len(members))
	}
	if members[0].ID != "s1" {
		t.Errorf("Members()[0].ID = %q, want %q", members[0].ID, "s1")
	}
}

func TestRegistry_Join_OneRoomInvariant(t *testing.T) {
	r := NewRegistry()
	openSession(t, r, "s1", "u1", "Alice")
	openSession(t, r, "s2", "u2", "Bob")

	if _, err := r.Join("s1", "support"); err != nil {
		t.Fatalf("Join(support) failed: %v", err)
	}
	if _, err := r.Join("s2", "support"); err != nil {
		t.Fatalf("Join(support) failed: %v", err)
	}
	if _, err := r.Join("s1", "sales"); err != nil {
		t.Fatalf("Join(sales) failed: %v", err)
	}

	if n := len(r.Members("support")); n != 1 {
		t.Errorf("support members = %d, want 1 after move", n)
	}
	if n := len(r.Members("sales")); n != 1 {
		t.Errorf("sales members = %d, want 1", n)
	}

	sess, ok := r.Session("s1")
	if !ok {
		t.Fatal("Session(s1) not found")
	}
	if sess.RoomID != "sales" {
		t.Errorf("Session(s1).RoomID = %q, want %q", sess.RoomID, "sales")
	}
}

func TestRegistry_Leave(t *testing.T) {
	r := NewRegistry()
	openSession(t, r, "s1", "u1", "Alice")
	openSession(t, r, "s2", "u2", "Bob")
	_, _ = r.Join("s1", "support")
	_, _ = r.Join("s2", "support")

	before, ok := r.Leave("s1")
	if !ok {
		t.Fatal("Leave() reported no-op for a joined session")
	}
	if before.RoomID != "support" {
		t.Errorf("Leave() previous room = %q, want %q", before.RoomID, "support")
	}

	if n := len(r.Members("support")); n != 1 {
		t.Errorf("support members = %d, want 1 after leave", n)
	}

	// A session not in a room cannot leave again.
	if _, ok := r.Leave("s1"); ok {
		t.Error("Leave() second call should be a no-op")
	}

	// Sending after leave fails with membership error.
	if _, err := r.Send("s1", "", "hello"); !errors.Is(err, ErrNotAMember) {
		t.Errorf("Send() after leave error = %v, want ErrNotAMember", err)
	}
}

func TestRegistry_RoomGarbageCollection(t *testing.T) {
	r := NewRegistry()
	openSession(t, r, "s1", "u1", "Alice")
	_, _ = r.Join("s1", "support")

	if len(r.Rooms()) != 1 {
		t.Fatalf("Rooms() count = %d, want 1", len(r.Rooms()))
	}

	r.Leave("s1")

	if len(r.Rooms()) != 0 {
		t.Errorf("Rooms() count = %d, want 0 after last member left", len(r.Rooms()))
	}
	if r.Members("support") != nil {
		t.Error("Members() should be nil for a collected room")
	}
}

func TestRegistry_Send(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(r *Registry)
		sessionID string
		roomID    string
		text      string
		wantErr   error
	}{
		{
			name: "member can send to current room",
			setup: func(r *Registry) {
				openSession(t, r, "s1", "u1", "Alice")
				_, _ = r.Join("s1", "support")
			},
			sessionID: "s1",
			roomID:    "support",
			text:      "hello",
		},
		{
			name: "empty room id means current room",
			setup: func(r *Registry) {
				openSession(t, r, "s1", "u1", "Alice")
				_, _ = r.Join("s1", "support")
			},
			sessionID: "s1",
			roomID:    "",
			text:      "hello",
		},
		{
			name:      "send before joining any room",
			setup:     func(r *Registry) { openSession(t, r, "s1", "u1", "Alice") },
			sessionID: "s1",
			roomID:    "support",
			text:      "hello",
			wantErr:   ErrNotAMember,
		},
		{
			name: "send to a room the session has not joined",
			setup: func(r *Registry) {
				openSession(t, r, "s1", "u1", "Alice")
				_, _ = r.Join("s1", "support")
			},
			sessionID: "s1",
			roomID:    "sales",
			text:      "hello",
			wantErr:   ErrNotAMember,
		},
		{
			name:      "unknown session",
			setup:     func(r *Registry) {},
			sessionID: "ghost",
			roomID:    "support",
			text:      "hello",
			wantErr:   ErrInvalidSession,
		},
		{
			name: "empty message",
			setup: func(r *Registry) {
				openSession(t, r, "s1", "u1", "Alice")
				_, _ = r.Join("s1", "support")
			},
			sessionID: "s1",
			roomID:    "support",
			text:      "",
			wantErr:   ErrMessageEmpty,
		},
		{
			name: "oversized message",
			setup: func(r *Registry) {
				openSession(t, r, "s1", "u1", "Alice")
				_, _ = r.Join("s1", "support")
			},
			sessionID: "s1",
			roomID:    "support",
			text:      strings.Repeat("x", MaxMessageLength+1),
			wantErr:   ErrMessageTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			tt.setup(r)

			msg, err := r.Send(tt.sessionID, tt.roomID, tt.text)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Send() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Send() unexpected error: %v", err)
			}

			if msg.ID == "" {
				t.Error("Send() message.ID should be server-assigned")
			}
			if msg.Timestamp.IsZero() {
				t.Error("Send() message.Timestamp should be server-assigned")
			}
			if msg.RoomID != "support" {
				t.Errorf("Send() message.RoomID = %q, want %q", msg.RoomID, "support")
			}
			if msg.SessionID != tt.sessionID {
				t.Errorf("Send() message.SessionID = %q, want %q", msg.SessionID, tt.sessionID)
			}
			if msg.Sender != chat.RoleUser {
				t.Errorf("Send() message.Sender = %q, want %q", msg.Sender, chat.RoleUser)
			}
			if msg.Body != tt.text {
				t.Errorf("Send() message.Body = %q, want %q", msg.Body, tt.text)
			}
		})
	}
}

func TestRegistry_Send_UniqueIDs(t *testing.T) {
	r := NewRegistry()
	openSession(t, r, "s1", "u1", "Alice")
	_, _ = r.Join("s1", "support")

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		msg, err := r.Send("s1", "", "hello")
		if err != nil {
			t.Fatalf("Send() failed: %v", err)
		}
		if seen[msg.ID] {
			t.Fatalf("Send() produced duplicate id %q", msg.ID)
		}
		seen[msg.ID] = true
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	openSession(t, r, "s1", "u1", "Alice")
	openSession(t, r, "s2", "u2", "Bob")
	_, _ = r.Join("s1", "support")
	_, _ = r.Join("s2", "support")

	closed, ok := r.Unregister("s1")
	if !ok {
		t.Fatal("Unregister() did not find the session")
	}
	if closed.State != chat.StateClosed {
		t.Errorf("Unregister() state = %q, want %q", closed.State, chat.StateClosed)
	}
	if closed.RoomID != "support" {
		t.Errorf("Unregister() room = %q, want %q", closed.RoomID, "support")
	}

	if n := len(r.Members("support")); n != 1 {
		t.Errorf("support members = %d, want 1 after unregister", n)
	}
	if _, ok := r.Session("s1"); ok {
		t.Error("Session() should not find an unregistered session")
	}

	// A later member can still use the room without error.
	openSession(t, r, "s3", "u3", "Cira")
	if _, err := r.Join("s3", "support"); err != nil {
		t.Fatalf("Join() after unregister failed: %v", err)
	}
	if _, err := r.Send("s3", "support", "anyone here?"); err != nil {
		t.Fatalf("Send() after unregister failed: %v", err)
	}

	if _, ok := r.Unregister("s1"); ok {
		t.Error("Unregister() second call should be a no-op")
	}
}

func TestRegistry_BindIdentity(t *testing.T) {
	r := NewRegistry()
	openSession(t, r, "anon", "", "")
	openSession(t, r, "known", "u9", "Dana")

	r.BindIdentity("anon", "u5", "Eve")
	sess, _ := r.Session("anon")
	if sess.UserID != "u5" || sess.Username != "Eve" {
		t.Errorf("BindIdentity() = %q/%q, want u5/Eve", sess.UserID, sess.Username)
	}

	// An existing identity is never overwritten.
	r.BindIdentity("known", "u0", "Mallory")
	sess, _ = r.Session("known")
	if sess.UserID != "u9" {
		t.Errorf("BindIdentity() overwrote UserID: got %q, want u9", sess.UserID)
	}
}

func TestValidateRoomID(t *testing.T) {
	tests := []struct {
		name    string
		roomID  string
		wantErr error
	}{
		{name: "valid", roomID: "support"},
		{name: "empty", roomID: "", wantErr: ErrRoomIDEmpty},
		{name: "too long", roomID: strings.Repeat("r", MaxRoomIDLength+1), wantErr: ErrRoomIDTooLong},
		{name: "invalid utf-8", roomID: string([]byte{0xff, 0xfe}), wantErr: ErrRoomIDInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRoomID(tt.roomID)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateRoomID(%q) = %v, want %v", tt.roomID, err, tt.wantErr)
			}
		})
	}
}

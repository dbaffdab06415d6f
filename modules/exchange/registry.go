package exchange

import (
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/example/chat-exchange/domain/chat"
)

// Validation constants
const (
	MaxUsernameLength = 50
	MaxRoomIDLength   = 100
	MaxMessageLength  = 5000
)

// Operation errors
var (
	ErrInvalidSession = errors.New("invalid or closed session")
	ErrNotAMember     = errors.New("session is not a member of the room")
	ErrRoomIDEmpty    = errors.New("room id cannot be empty")
	ErrRoomIDTooLong  = errors.New("room id exceeds maximum length")
	ErrRoomIDInvalid  = errors.New("room id contains invalid characters")
	ErrMessageEmpty   = errors.New("message text cannot be empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
	ErrMessageInvalid = errors.New("message contains invalid characters")
)

// ValidateRoomID validates a room identifier.
func ValidateRoomID(roomID string) error {
	if roomID == "" {
		return ErrRoomIDEmpty
	}
	if len(roomID) > MaxRoomIDLength {
		return ErrRoomIDTooLong
	}
	if !utf8.ValidString(roomID) {
		return ErrRoomIDInvalid
	}
	return nil
}

// ValidateMessage validates message text.
func ValidateMessage(text string) error {
	if text == "" {
		return ErrMessageEmpty
	}
	if len(text) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if !utf8.ValidString(text) {
		return ErrMessageInvalid
	}
	return nil
}

type roomState struct {
	members   map[string]struct{} // sessionID set
	createdAt time.Time
}

// Registry holds the exchange's session and room membership state.
// A session belongs to at most one room; rooms exist only while they have
// members. All state is process-local.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*chat.Session
	rooms    map[string]*roomState
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*chat.Session),
		rooms:    make(map[string]*roomState),
	}
}

// Register adds an open session to the registry.
func (r *Registry) Register(sess chat.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess.State = chat.StateOpen
	sess.RoomID = ""
	r.sessions[sess.ID] = &sess
}

// Unregister marks a session closed and removes it. It returns the session
// and the room it occupied, so the caller can emit a leave notification.
func (r *Registry) Unregister(sessionID string) (chat.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return chat.Session{}, false
	}

	if sess.RoomID != "" {
		r.removeMemberLocked(sess.RoomID, sessionID)
	}
	delete(r.sessions, sessionID)

	closed := *sess
	closed.State = chat.StateClosed
	return closed, true
}

// JoinResult reports the outcome of a Join call.
type JoinResult struct {
	Session      chat.Session
	Joined       bool   // false when the join was an idempotent no-op
	PreviousRoom string // non-empty when the session moved rooms
}

// Join adds a session to a room, creating the room on first join. Joining a
// room the session already occupies is a no-op. A session in a different
// room is moved: membership in the old room is dropped first, preserving the
// one-room-per-session invariant.
func (r *Registry) Join(sessionID, roomID string) (JoinResult, error) {
	if err := ValidateRoomID(roomID); err != nil {
		return JoinResult{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok || sess.State != chat.StateOpen {
		return JoinResult{}, ErrInvalidSession
	}

	if sess.RoomID == roomID {
		return JoinResult{Session: *sess}, nil
	}

	res := JoinResult{Joined: true}
	if sess.RoomID != "" {
		res.PreviousRoom = sess.RoomID
		r.removeMemberLocked(sess.RoomID, sessionID)
	}

	room, ok := r.rooms[roomID]
	if !ok {
		room = &roomState{
			members:   make(map[string]struct{}),
			createdAt: time.Now().UTC(),
		}
		r.rooms[roomID] = room
	}
	room.members[sessionID] = struct{}{}
	sess.RoomID = roomID

	res.Session = *sess
	return res, nil
}

// Leave removes a session from its current room. It reports the session as
// it was before leaving; ok is false for unknown sessions or sessions that
// are not in a room.
func (r *Registry) Leave(sessionID string) (chat.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok || sess.RoomID == "" {
		return chat.Session{}, false
	}

	before := *sess
	r.removeMemberLocked(sess.RoomID, sessionID)
	sess.RoomID = ""
	return before, true
}

// Send validates membership and stamps a message for relay. The roomID may
// be empty, meaning the session's current room; a mismatching roomID fails
// with ErrNotAMember, as does a session that never joined. The message id
// and timestamp are assigned here, server-side.
func (r *Registry) Send(sessionID, roomID, text string) (chat.Message, error) {
	if err := ValidateMessage(text); err != nil {
		return chat.Message{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[sessionID]
	if !ok || sess.State != chat.StateOpen {
		return chat.Message{}, ErrInvalidSession
	}

	if sess.RoomID == "" {
		return chat.Message{}, ErrNotAMember
	}
	if roomID != "" && roomID != sess.RoomID {
		return chat.Message{}, ErrNotAMember
	}

	return chat.Message{
		ID:        uuid.New().String(),
		RoomID:    sess.RoomID,
		SessionID: sessionID,
		UserID:    sess.UserID,
		Username:  sess.Username,
		Body:      text,
		Sender:    chat.RoleUser,
		Timestamp: time.Now().UTC(),
	}, nil
}

// BindIdentity attaches a user identity to an anonymous session. Sessions
// that already carry an identity (from a validated token) keep it.
func (r *Registry) BindIdentity(sessionID, userID, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok || sess.UserID != "" {
		return
	}
	sess.UserID = userID
	if username != "" {
		sess.Username = username
	}
}

// Session returns a copy of a registered session.
func (r *Registry) Session(sessionID string) (chat.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return chat.Session{}, false
	}
	return *sess, true
}

// SessionCount returns the number of registered sessions.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Rooms returns all rooms with live members.
func (r *Registry) Rooms() []chat.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]chat.Room, 0, len(r.rooms))
	for id, room := range r.rooms {
		rooms = append(rooms, chat.Room{
			ID:        id,
			Members:   len(room.members),
			CreatedAt: room.createdAt,
		})
	}
	return rooms
}

// Members returns copies of the sessions currently in a room.
func (r *Registry) Members(roomID string) []chat.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}

	members := make([]chat.Session, 0, len(room.members))
	for sessionID := range room.members {
		if sess, ok := r.sessions[sessionID]; ok {
			members = append(members, *sess)
		}
	}
	return members
}

// removeMemberLocked drops a session from a room and garbage-collects the
// room once empty. Caller holds the write lock.
func (r *Registry) removeMemberLocked(roomID, sessionID string) {
	room, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(room.members, sessionID)
	if len(room.members) == 0 {
		delete(r.rooms, roomID)
	}
}

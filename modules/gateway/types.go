package gateway

import (
	"github.com/example/chat-exchange/domain/chat"
	"github.com/example/chat-exchange/modules/archive"
)

// TokenRequest is the API request to issue a guest token.
type TokenRequest struct {
	UserName string `json:"userName"`
}

// TokenResponse is the API response carrying a guest token.
type TokenResponse struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Token    string `json:"token"`
}

// RoomListResponse is the API response for listing rooms.
type RoomListResponse struct {
	Rooms []chat.Room `json:"rooms"`
	Total int         `json:"total"`
}

// Member is the REST view of a room member. Session identifiers are
// transport-internal and stay off the wire.
type Member struct {
	UserID   string            `json:"userId,omitempty"`
	UserName string            `json:"userName,omitempty"`
	State    chat.SessionState `json:"state"`
}

// MemberListResponse is the API response for listing room members.
type MemberListResponse struct {
	RoomID  string   `json:"room"`
	Members []Member `json:"members"`
	Total   int      `json:"total"`
}

// ArchiveResponse is the API response for archived messages.
type ArchiveResponse struct {
	RoomID   string           `json:"room"`
	Messages []archive.Record `json:"messages"`
	Total    int              `json:"total"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

package exchange

import "github.com/example/chat-exchange/domain/chat"

// Service names registered in the service container.
const (
	ServiceListRooms   = "list-rooms"
	ServiceRoomMembers = "room-members"
)

// ListRoomsRequest is the request for the list-rooms service.
type ListRoomsRequest struct{}

// ListRoomsResponse is the response for the list-rooms service.
type ListRoomsResponse struct {
	Rooms []chat.Room `json:"rooms"`
}

// RoomMembersRequest is the request for the room-members service.
type RoomMembersRequest struct {
	RoomID string `json:"room"`
}

// RoomMembersResponse is the response for the room-members service.
type RoomMembersResponse struct {
	RoomID  string         `json:"room"`
	Members []chat.Session `json:"members"`
	Found   bool           `json:"found"`
}

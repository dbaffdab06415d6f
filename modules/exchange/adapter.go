package exchange

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/example/chat-exchange/domain/chat"
)

// ChatPort is the read interface other modules use to observe the exchange.
type ChatPort interface {
	ListRooms(ctx context.Context) ([]chat.Room, error)
	RoomMembers(ctx context.Context, roomID string) ([]chat.Session, bool, error)
}

// ChatAdapter implements ChatPort over the service container.
type ChatAdapter struct {
	container mono.ServiceContainer
}

// NewChatAdapter creates a new ChatAdapter.
func NewChatAdapter(container mono.ServiceContainer) ChatPort {
	if container == nil {
		panic("exchange: ServiceContainer is nil")
	}
	return &ChatAdapter{container: container}
}

// ListRooms returns all rooms with live members.
func (a *ChatAdapter) ListRooms(ctx context.Context) ([]chat.Room, error) {
	req := ListRoomsRequest{}
	var resp ListRoomsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListRooms,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return resp.Rooms, nil
}

// RoomMembers returns the sessions currently in a room.
func (a *ChatAdapter) RoomMembers(ctx context.Context, roomID string) ([]chat.Session, bool, error) {
	req := RoomMembersRequest{RoomID: roomID}
	var resp RoomMembersResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceRoomMembers,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, false, fmt.Errorf("failed to get room members: %w", err)
	}
	return resp.Members, resp.Found, nil
}

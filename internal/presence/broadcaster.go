package presence

import (
	"context"

	"github.com/sasachat/sasachat/internal/domain"
	"github.com/sasachat/sasachat/pkg/log"
)

// RoomSender fans a message out to the connections subscribed to a room.
type RoomSender interface {
	BroadcastToRoom(roomID string, message interface{}, exclude string) (int, error)
}

// NicknameLister is the read side of the membership registry.
type NicknameLister interface {
	ListNicknames(roomID string) []string
}

// Broadcaster pushes room_users snapshots.
type Broadcaster struct {
	sender   RoomSender
	registry NicknameLister
}

func NewBroadcaster(sender RoomSender, registry NicknameLister) *Broadcaster {
	return &Broadcaster{sender: sender, registry: registry}
}

// Broadcast sends the current participant list to every subscriber of
// roomID, including a connection that just joined. It returns the list
// that was sent.
func (b *Broadcaster) Broadcast(ctx context.Context, roomID string) []string {
	users := b.registry.ListNicknames(roomID)
	b.Send(ctx, roomID, users)
	return users
}

// Send broadcasts an explicit participant list.
func (b *Broadcaster) Send(ctx context.Context, roomID string, users []string) {
	if _, err := b.sender.BroadcastToRoom(roomID, domain.NewRoomUsersMessage(roomID, users), ""); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to broadcast room users")
	}
}

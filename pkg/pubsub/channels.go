package pubsub

import "fmt"

// Channel names follow {source}:room:{roomID}:to_{target}.
const (
	// Chat gateway -> observers (persist workers, analytics, other instances)
	ChannelChatToObservers = "chat:room:%s:to_observers"

	// Room CRUD layer -> chat gateway
	ChannelRoomsToChat = "rooms:room:%s:to_chat"
)

// Event types published by the chat gateway.
const (
	EventMessageSent  = "message_sent"
	EventMemberJoined = "member_joined"
	EventMemberLeft   = "member_left"
	EventRoomClosed   = "room_closed"
)

// Event types consumed by the chat gateway.
const (
	EventRoomDeleted = "room_deleted"
)

// ChatToObserversChannel returns the channel for gateway events of a room.
func ChatToObserversChannel(roomID string) string {
	return fmt.Sprintf(ChannelChatToObservers, roomID)
}

// RoomsToChatChannel returns the channel for room lifecycle events.
func RoomsToChatChannel(roomID string) string {
	return fmt.Sprintf(ChannelRoomsToChat, roomID)
}

// MessageSentPayload is published after a user message was handled.
type MessageSentPayload struct {
	MessageID int64  `json:"message_id"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Persisted bool   `json:"persisted"`
	CreatedAt string `json:"created_at"`
}

// MembershipPayload is published on member_joined and member_left.
type MembershipPayload struct {
	UserID   string   `json:"user_id"`
	Nickname string   `json:"nickname"`
	Users    []string `json:"users"`
}

// RoomDeletedPayload is published by the room CRUD layer.
type RoomDeletedPayload struct {
	RoomID    string `json:"room_id"`
	DeletedBy string `json:"deleted_by"`
}

package registry

import "github.com/sasachat/sasachat/internal/domain"

// Registry tracks which connections are present in which room. A
// connection is in at most one room; a nickname has at most one entry per
// room.
type Registry interface {
	// Register adds p to roomID and reports whether a new entry was created.
	// If p.Nickname is already present under another connection the entry
	// is rebound to p.ConnID and false is returned. A connection already
	// registered elsewhere is moved: its old entry is removed first.
	Register(roomID string, p domain.Participant) bool

	// Unregister removes the entry owned by connID from whichever room
	// holds it.
	Unregister(connID string) (roomID string, p domain.Participant, ok bool)

	// ListNicknames returns the room's nicknames in registration order.
	ListNicknames(roomID string) []string

	Participants(roomID string) []domain.Participant
	RoomOf(connID string) (string, bool)
	Count(roomID string) int
	Rooms() []string

	// RemoveRoom drops every entry of roomID and returns them.
	RemoveRoom(roomID string) []domain.Participant
}

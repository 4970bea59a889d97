//go:generate go run go.uber.org/mock/mockgen -source=interface.go -destination=../mocks/mock_message_store.go -package=mocks

package store

import (
	"context"
	"errors"

	"github.com/sasachat/sasachat/internal/domain"
)

var (
	// ErrStorage wraps every failure of the underlying database.
	ErrStorage = errors.New("message store unavailable")
	// ErrRoomNotFound is returned when the room no longer exists.
	ErrRoomNotFound = errors.New("room not found")
)

type Direction string

const (
	DirectionBackward Direction = "backward" // newest first
	DirectionForward  Direction = "forward"  // oldest first
)

func ParseDirection(s string) Direction {
	if s == string(DirectionForward) {
		return DirectionForward
	}
	return DirectionBackward
}

// Page is one page of cursor pagination. NextCursor is the id of the last
// message in Messages, 0 when the page is empty.
type Page struct {
	Messages   []domain.Message `json:"messages"`
	NextCursor int64            `json:"nextCursor,string"`
	HasMore    bool             `json:"hasMore"`
}

// MessageStore is the append-only log of user messages.
type MessageStore interface {
	// Append persists a non-system message and returns the stored record.
	Append(ctx context.Context, roomID, sender, text string) (*domain.Message, error)

	// History returns the room's messages oldest first. limit <= 0 returns
	// the whole log, otherwise the most recent limit messages.
	History(ctx context.Context, roomID string, limit int) ([]domain.Message, error)

	// Page returns messages after (forward) or before (backward) cursor.
	// A zero cursor starts at the oldest or newest message respectively.
	Page(ctx context.Context, roomID string, cursor int64, limit int, dir Direction) (*Page, error)

	Close() error
}

// trimPage applies the limit+1 probe used by every Page implementation.
func trimPage(msgs []domain.Message, limit int) *Page {
	p := &Page{Messages: msgs}
	if p.Messages == nil {
		p.Messages = []domain.Message{}
	}
	if len(p.Messages) > limit {
		p.HasMore = true
		p.Messages = p.Messages[:limit]
	}
	if n := len(p.Messages); n > 0 {
		p.NextCursor = p.Messages[n-1].ID
	}
	return p
}

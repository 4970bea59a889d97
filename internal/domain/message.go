package domain

import "time"

// Message is a chat line. User messages are persisted before broadcast;
// system messages (IsSystem) are broadcast only.
//
// Ids travel as strings because snowflake values do not fit a JavaScript
// number.
type Message struct {
	ID        int64     `json:"id,string"`
	RoomID    string    `json:"roomId"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	IsSystem  bool      `json:"isSystem"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSystemMessage builds a broadcast-only notice. The id defaults to the
// time in milliseconds; the gateway replaces it with one from its id
// generator.
func NewSystemMessage(roomID, sender, text string, now time.Time) Message {
	return Message{
		ID:        now.UnixMilli(),
		RoomID:    roomID,
		Sender:    sender,
		Text:      text,
		IsSystem:  true,
		CreatedAt: now,
	}
}

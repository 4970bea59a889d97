package store

import (
	"time"

	"github.com/sasachat/sasachat/internal/domain"
)

// MessageModel is the row layout of the messages table.
type MessageModel struct {
	ID             int64     `gorm:"primaryKey;autoIncrement:false"`
	RoomID         uint64    `gorm:"not null;index:idx_messages_room_created,priority:1"`
	SenderNickname string    `gorm:"size:100;not null"`
	Content        string    `gorm:"type:text;not null"`
	IsSystem       bool      `gorm:"not null;default:false"`
	CreatedAt      time.Time `gorm:"not null;index:idx_messages_room_created,priority:2"`
}

func (MessageModel) TableName() string {
	return "messages"
}

func (m *MessageModel) ToDomain() domain.Message {
	return domain.Message{
		ID:        m.ID,
		RoomID:    domain.FormatRoomID(m.RoomID),
		Sender:    m.SenderNickname,
		Text:      m.Content,
		IsSystem:  m.IsSystem,
		CreatedAt: m.CreatedAt,
	}
}

func modelsToDomain(rows []MessageModel) []domain.Message {
	out := make([]domain.Message, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out
}

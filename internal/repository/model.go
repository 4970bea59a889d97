package repository

import (
	"time"

	"github.com/sasachat/sasachat/internal/domain"
	"github.com/sasachat/sasachat/pkg/database"
)

// RoomModel is the GORM model for the chatrooms table.
type RoomModel struct {
	ID        uint64               `gorm:"primaryKey;autoIncrement"`
	Title     string               `gorm:"type:varchar(200);not null"`
	CreatorID string               `gorm:"type:varchar(64);index;not null"`
	Hashtags  database.StringArray `gorm:"type:text"`
	CreatedAt time.Time            `gorm:"autoCreateTime"`
}

func (RoomModel) TableName() string {
	return "chatrooms"
}

// ParticipantModel is the GORM model for room_participants.
type ParticipantModel struct {
	RoomID   uint64    `gorm:"primaryKey;autoIncrement:false"`
	UserID   string    `gorm:"type:varchar(64);primaryKey;index"`
	JoinedAt time.Time `gorm:"autoCreateTime"`
}

func (ParticipantModel) TableName() string {
	return "room_participants"
}

func (m *RoomModel) ToDomain() *domain.Room {
	tags := []string(m.Hashtags)
	if tags == nil {
		tags = []string{}
	}
	return &domain.Room{
		ID:        domain.FormatRoomID(m.ID),
		Title:     m.Title,
		CreatorID: m.CreatorID,
		Hashtags:  tags,
		CreatedAt: m.CreatedAt,
	}
}

func RoomToModel(r *domain.Room) *RoomModel {
	return &RoomModel{
		Title:     r.Title,
		CreatorID: r.CreatorID,
		Hashtags:  database.StringArray(domain.NormalizeHashtags(r.Hashtags)),
	}
}

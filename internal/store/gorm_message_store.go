package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sasachat/sasachat/internal/domain"
	"github.com/sasachat/sasachat/internal/idgen"
	"github.com/sasachat/sasachat/pkg/log"
)

// GormMessageStore keeps messages in the relational messages table next to
// the chatrooms table of the room CRUD layer.
type GormMessageStore struct {
	db        *gorm.DB
	ids       idgen.Generator
	checkRoom bool
	now       func() time.Time
}

// NewGormMessageStore creates the store. With checkRoom set, Append
// verifies inside its transaction that the chatrooms row still exists.
func NewGormMessageStore(db *gorm.DB, ids idgen.Generator, checkRoom bool) *GormMessageStore {
	return &GormMessageStore{
		db:        db,
		ids:       ids,
		checkRoom: checkRoom,
		now:       time.Now,
	}
}

// Migrate creates the messages table.
func (s *GormMessageStore) Migrate() error {
	return s.db.AutoMigrate(&MessageModel{})
}

func (s *GormMessageStore) Append(ctx context.Context, roomID, sender, text string) (*domain.Message, error) {
	rid, err := domain.ParseRoomID(roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRoomNotFound, err)
	}

	id, err := s.ids.NextID()
	if err != nil {
		return nil, fmt.Errorf("%w: generate id: %v", ErrStorage, err)
	}

	row := &MessageModel{
		ID:             id,
		RoomID:         rid,
		SenderNickname: sender,
		Content:        text,
		IsSystem:       false,
		CreatedAt:      s.now().UTC().Truncate(time.Microsecond),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.checkRoom {
			var n int64
			if err := tx.Table("chatrooms").Where("id = ?", rid).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return ErrRoomNotFound
			}
		}
		return tx.Create(row).Error
	})
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("%w: insert message: %v", ErrStorage, err)
	}

	l := log.Ctx(ctx)
	l.Debug().Int64(log.FieldMsgID, id).Msg("message persisted")

	msg := row.ToDomain()
	return &msg, nil
}

func (s *GormMessageStore) History(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	rid, err := domain.ParseRoomID(roomID)
	if err != nil {
		return []domain.Message{}, nil
	}

	var rows []MessageModel
	q := s.db.WithContext(ctx).Where("room_id = ? AND is_system = ?", rid, false)

	if limit <= 0 {
		err = q.Order("created_at ASC").Order("id ASC").Find(&rows).Error
	} else {
		err = q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
		reverse(rows)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query history: %v", ErrStorage, err)
	}

	return modelsToDomain(rows), nil
}

func (s *GormMessageStore) Page(ctx context.Context, roomID string, cursor int64, limit int, dir Direction) (*Page, error) {
	rid, err := domain.ParseRoomID(roomID)
	if err != nil {
		return trimPage(nil, limit), nil
	}

	q := s.db.WithContext(ctx).Where("room_id = ? AND is_system = ?", rid, false)
	if dir == DirectionForward {
		if cursor > 0 {
			q = q.Where("id > ?", cursor)
		}
		q = q.Order("id ASC")
	} else {
		if cursor > 0 {
			q = q.Where("id < ?", cursor)
		}
		q = q.Order("id DESC")
	}

	var rows []MessageModel
	if err := q.Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: query page: %v", ErrStorage, err)
	}

	return trimPage(modelsToDomain(rows), limit), nil
}

// Close is a no-op; the *gorm.DB is shared with the room repository and
// closed by its owner.
func (s *GormMessageStore) Close() error {
	return nil
}

func reverse(rows []MessageModel) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

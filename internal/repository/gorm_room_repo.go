package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sasachat/sasachat/internal/domain"
	"github.com/sasachat/sasachat/pkg/log"
)

// GormRoomRepository implements RoomRepository using GORM.
type GormRoomRepository struct {
	db *gorm.DB
}

func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	return &GormRoomRepository{db: db}
}

// Migrate creates the chatrooms and room_participants tables.
func (r *GormRoomRepository) Migrate() error {
	return r.db.AutoMigrate(&RoomModel{}, &ParticipantModel{})
}

func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	l := log.Ctx(ctx)

	model := RoomToModel(room)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		return tx.Create(&ParticipantModel{RoomID: model.ID, UserID: model.CreatorID}).Error
	})
	if err != nil {
		l.Error().Err(err).Str(log.FieldUserID, room.CreatorID).Msg("failed to create room in db")
		return err
	}

	*room = *model.ToDomain()
	l.Debug().Str(log.FieldRoomID, room.ID).Msg("room created in db")
	return nil
}

func (r *GormRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	rid, err := domain.ParseRoomID(id)
	if err != nil {
		return nil, ErrRoomNotFound
	}

	var model RoomModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", rid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoomID, id).Msg("failed to get room by id")
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormRoomRepository) Exists(ctx context.Context, id string) (bool, error) {
	rid, err := domain.ParseRoomID(id)
	if err != nil {
		return false, nil
	}

	var n int64
	if err := r.db.WithContext(ctx).Model(&RoomModel{}).Where("id = ?", rid).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *GormRoomRepository) List(ctx context.Context) ([]domain.Room, error) {
	var models []RoomModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to list rooms from db")
		return nil, err
	}

	rooms := make([]domain.Room, len(models))
	for i := range models {
		rooms[i] = *models[i].ToDomain()
	}
	return rooms, nil
}

type participantRoomRow struct {
	RoomModel
	JoinedAt time.Time
}

func (r *GormRoomRepository) ListByParticipant(ctx context.Context, userID string) ([]domain.Room, error) {
	var rows []participantRoomRow
	err := r.db.WithContext(ctx).
		Table("chatrooms AS c").
		Select("c.*, rp.joined_at").
		Joins("JOIN room_participants rp ON c.id = rp.room_id").
		Where("rp.user_id = ?", userID).
		Order("rp.joined_at DESC").
		Order("c.id DESC").
		Scan(&rows).Error
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to list participant rooms")
		return nil, err
	}

	rooms := make([]domain.Room, len(rows))
	for i := range rows {
		rooms[i] = *rows[i].RoomModel.ToDomain()
		rooms[i].JoinedAt = rows[i].JoinedAt
	}
	return rooms, nil
}

func (r *GormRoomRepository) AddParticipant(ctx context.Context, roomID, userID string) error {
	rid, err := domain.ParseRoomID(roomID)
	if err != nil {
		return ErrRoomNotFound
	}

	exists, err := r.Exists(ctx, roomID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrRoomNotFound
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ParticipantModel{RoomID: rid, UserID: userID}).Error
}

func (r *GormRoomRepository) RemoveParticipant(ctx context.Context, roomID, userID string) error {
	rid, err := domain.ParseRoomID(roomID)
	if err != nil {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", rid, userID).
		Delete(&ParticipantModel{}).Error
}

func (r *GormRoomRepository) Delete(ctx context.Context, id string) error {
	rid, err := domain.ParseRoomID(id)
	if err != nil {
		return ErrRoomNotFound
	}

	l := log.Ctx(ctx)
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", rid).Delete(&RoomModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRoomNotFound
		}
		if err := tx.Where("room_id = ?", rid).Delete(&ParticipantModel{}).Error; err != nil {
			return err
		}
		// messages lives here only with the relational message store.
		if tx.Migrator().HasTable("messages") {
			return tx.Exec("DELETE FROM messages WHERE room_id = ?", rid).Error
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrRoomNotFound) {
			l.Error().Err(err).Str(log.FieldRoomID, id).Msg("failed to delete room in db")
		}
		return err
	}

	l.Debug().Str(log.FieldRoomID, id).Msg("room deleted in db")
	return nil
}

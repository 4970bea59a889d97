package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sasachat/sasachat/internal/domain"
	"github.com/sasachat/sasachat/pkg/database"
)

func newTestRepo(t *testing.T) (*GormRoomRepository, *gorm.DB) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.New(&database.Config{
		Driver:   "sqlite",
		FilePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	repo := NewGormRoomRepository(db)
	require.NoError(t, repo.Migrate())
	return repo, db
}

func TestGormRoomRepository_Create(t *testing.T) {
	ctx := context.Background()
	repo, db := newTestRepo(t)

	room := &domain.Room{Title: "Go study", CreatorID: "u1", Hashtags: []string{"#go", "study", "go"}}
	require.NoError(t, repo.Create(ctx, room))
	require.Equal(t, "1", room.ID)
	require.Equal(t, []string{"go", "study"}, room.Hashtags)

	var n int64
	require.NoError(t, db.Model(&ParticipantModel{}).Where("room_id = 1 AND user_id = ?", "u1").Count(&n).Error)
	require.Equal(t, int64(1), n, "creator is enrolled")

	got, err := repo.GetByID(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, "Go study", got.Title)
	require.Equal(t, []string{"go", "study"}, got.Hashtags)

	ok, err := repo.Exists(ctx, room.ID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGormRoomRepository_GetByIDNotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.GetByID(context.Background(), "42")
	require.ErrorIs(t, err, ErrRoomNotFound)

	_, err = repo.GetByID(context.Background(), "abc")
	require.ErrorIs(t, err, ErrRoomNotFound)

	ok, err := repo.Exists(context.Background(), "abc")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGormRoomRepository_Participants(t *testing.T) {
	ctx := context.Background()
	repo, db := newTestRepo(t)

	a := &domain.Room{Title: "a", CreatorID: "u1"}
	b := &domain.Room{Title: "b", CreatorID: "u2"}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	t.Run("should join idempotently", func(t *testing.T) {
		require.NoError(t, repo.AddParticipant(ctx, b.ID, "u1"))
		require.NoError(t, repo.AddParticipant(ctx, b.ID, "u1"))

		var n int64
		require.NoError(t, db.Model(&ParticipantModel{}).Where("user_id = ?", "u1").Count(&n).Error)
		require.Equal(t, int64(2), n)
	})

	t.Run("should list participant rooms latest joined first", func(t *testing.T) {
		require.NoError(t, db.Model(&ParticipantModel{}).
			Where("room_id = ? AND user_id = ?", 1, "u1").
			Update("joined_at", time.Now().Add(-time.Hour)).Error)

		rooms, err := repo.ListByParticipant(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, rooms, 2)
		require.Equal(t, "b", rooms[0].Title)
		require.Equal(t, "a", rooms[1].Title)
	})

	t.Run("should reject joining a missing room", func(t *testing.T) {
		require.ErrorIs(t, repo.AddParticipant(ctx, "99", "u1"), ErrRoomNotFound)
	})

	t.Run("should leave only the caller's participation", func(t *testing.T) {
		require.NoError(t, repo.RemoveParticipant(ctx, b.ID, "u1"))

		rooms, err := repo.ListByParticipant(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, rooms, 1)

		ok, err := repo.Exists(ctx, b.ID)
		require.NoError(t, err)
		require.True(t, ok, "room survives leaving")
	})
}

func TestGormRoomRepository_List(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.Create(ctx, &domain.Room{Title: "first", CreatorID: "u1"}))
	require.NoError(t, repo.Create(ctx, &domain.Room{Title: "second", CreatorID: "u1"}))

	rooms, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	require.Equal(t, "second", rooms[0].Title)
}

func TestGormRoomRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo, db := newTestRepo(t)

	require.NoError(t, db.Exec(`CREATE TABLE messages (id INTEGER PRIMARY KEY, room_id INTEGER, sender_nickname TEXT, content TEXT, is_system BOOLEAN, created_at DATETIME)`).Error)

	room := &domain.Room{Title: "doomed", CreatorID: "u1"}
	require.NoError(t, repo.Create(ctx, room))
	require.NoError(t, db.Exec(`INSERT INTO messages (id, room_id, sender_nickname, content, is_system, created_at) VALUES (1, 1, 'alice', 'hi', 0, CURRENT_TIMESTAMP)`).Error)

	require.NoError(t, repo.Delete(ctx, room.ID))

	_, err := repo.GetByID(ctx, room.ID)
	require.ErrorIs(t, err, ErrRoomNotFound)

	var n int64
	require.NoError(t, db.Table("messages").Count(&n).Error)
	require.Zero(t, n)
	require.NoError(t, db.Model(&ParticipantModel{}).Count(&n).Error)
	require.Zero(t, n)

	require.ErrorIs(t, repo.Delete(ctx, room.ID), ErrRoomNotFound)
}

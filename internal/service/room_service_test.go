package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sasachat/sasachat/internal/domain"
	"github.com/sasachat/sasachat/internal/mocks"
	"github.com/sasachat/sasachat/internal/registry"
	"github.com/sasachat/sasachat/internal/repository"
	"github.com/sasachat/sasachat/internal/service"
)

type recordingNotifier struct {
	deleted []string
	err     error
}

func (n *recordingNotifier) RoomDeleted(_ context.Context, roomID, _ string) error {
	n.deleted = append(n.deleted, roomID)
	return n.err
}

func TestRoomService_CreateRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("should create a room for the caller", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockRoomRepository(ctrl)

		repo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, r *domain.Room) error {
			require.Equal(t, "Go study", r.Title)
			require.Equal(t, "u1", r.CreatorID)
			r.ID = "1"
			return nil
		})

		svc := service.NewRoomService(repo, nil, registry.NewMemoryRegistry())
		room, err := svc.CreateRoom(ctx, "u1", &domain.CreateRoomRequest{Title: "  Go study ", Hashtags: []string{"go"}})
		require.NoError(t, err)
		require.Equal(t, "1", room.ID)
	})

	t.Run("should reject a blank title", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := service.NewRoomService(mocks.NewMockRoomRepository(ctrl), nil, registry.NewMemoryRegistry())

		_, err := svc.CreateRoom(ctx, "u1", &domain.CreateRoomRequest{Title: "   "})
		require.ErrorIs(t, err, service.ErrInvalidTitle)
	})
}

func TestRoomService_GetMyRooms(t *testing.T) {
	ctx := context.Background()

	t.Run("should return an empty list for an anonymous caller", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := service.NewRoomService(mocks.NewMockRoomRepository(ctrl), nil, registry.NewMemoryRegistry())

		rooms, err := svc.GetMyRooms(ctx, "")
		require.NoError(t, err)
		require.NotNil(t, rooms)
		require.Empty(t, rooms)
	})

	t.Run("should list the caller's rooms", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockRoomRepository(ctrl)
		repo.EXPECT().ListByParticipant(ctx, "u1").Return([]domain.Room{{ID: "2"}, {ID: "1"}}, nil)

		rooms, err := service.NewRoomService(repo, nil, registry.NewMemoryRegistry()).GetMyRooms(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, rooms, 2)
	})
}

func TestRoomService_JoinRoom(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRoomRepository(ctrl)
	svc := service.NewRoomService(repo, nil, registry.NewMemoryRegistry())

	repo.EXPECT().AddParticipant(ctx, "7", "u1").Return(nil)
	require.NoError(t, svc.JoinRoom(ctx, "u1", "7"))

	repo.EXPECT().AddParticipant(ctx, "8", "u1").Return(repository.ErrRoomNotFound)
	require.ErrorIs(t, svc.JoinRoom(ctx, "u1", "8"), service.ErrRoomNotFound)
}

func TestRoomService_DeleteRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("should delete and notify when the caller is the creator", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockRoomRepository(ctrl)
		notifier := &recordingNotifier{}

		gomock.InOrder(
			repo.EXPECT().GetByID(ctx, "7").Return(&domain.Room{ID: "7", CreatorID: "u1"}, nil),
			repo.EXPECT().Delete(ctx, "7").Return(nil),
		)

		require.NoError(t, service.NewRoomService(repo, notifier, registry.NewMemoryRegistry()).DeleteRoom(ctx, "u1", "7"))
		require.Equal(t, []string{"7"}, notifier.deleted)
	})

	t.Run("should refuse anyone but the creator", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockRoomRepository(ctrl)
		notifier := &recordingNotifier{}

		repo.EXPECT().GetByID(ctx, "7").Return(&domain.Room{ID: "7", CreatorID: "u1"}, nil)

		err := service.NewRoomService(repo, notifier, registry.NewMemoryRegistry()).DeleteRoom(ctx, "u2", "7")
		require.ErrorIs(t, err, service.ErrNotCreator)
		require.Empty(t, notifier.deleted)
	})

	t.Run("should report a missing room", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockRoomRepository(ctrl)
		repo.EXPECT().GetByID(ctx, "9").Return(nil, repository.ErrRoomNotFound)

		err := service.NewRoomService(repo, nil, registry.NewMemoryRegistry()).DeleteRoom(ctx, "u1", "9")
		require.ErrorIs(t, err, service.ErrRoomNotFound)
	})

	t.Run("should keep the deletion when notifying fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockRoomRepository(ctrl)
		notifier := &recordingNotifier{err: errors.New("bus down")}

		repo.EXPECT().GetByID(ctx, "7").Return(&domain.Room{ID: "7", CreatorID: "u1"}, nil)
		repo.EXPECT().Delete(ctx, "7").Return(nil)

		require.NoError(t, service.NewRoomService(repo, notifier, registry.NewMemoryRegistry()).DeleteRoom(ctx, "u1", "7"))
	})
}

func TestRoomService_RoomUsers(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRoomRepository(ctrl)
	reg := registry.NewMemoryRegistry()
	reg.Register("7", domain.Participant{ConnID: "c1", Nickname: "alice"})
	svc := service.NewRoomService(repo, nil, reg)

	repo.EXPECT().Exists(ctx, "7").Return(true, nil)
	users, err := svc.RoomUsers(ctx, "7")
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, users)

	repo.EXPECT().Exists(ctx, "07").Return(true, nil)
	users, err = svc.RoomUsers(ctx, "07")
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, users)

	repo.EXPECT().Exists(ctx, "8").Return(true, nil)
	users, err = svc.RoomUsers(ctx, "8")
	require.NoError(t, err)
	require.NotNil(t, users)
	require.Empty(t, users)

	repo.EXPECT().Exists(ctx, "9").Return(false, nil)
	_, err = svc.RoomUsers(ctx, "9")
	require.ErrorIs(t, err, service.ErrRoomNotFound)
}

func TestHistoryService_GetMessages(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockMessageStore(ctrl)
	svc := service.NewHistoryService(st)

	st.EXPECT().Page(ctx, "7", int64(0), service.DefaultPageLimit, gomock.Any()).Return(nil, nil)
	_, err := svc.GetMessages(ctx, "7", -5, 0, "backward")
	require.NoError(t, err)

	st.EXPECT().Page(ctx, "7", int64(10), service.MaxPageLimit, gomock.Any()).Return(nil, nil)
	_, err = svc.GetMessages(ctx, "7", 10, 1000, "forward")
	require.NoError(t, err)
}

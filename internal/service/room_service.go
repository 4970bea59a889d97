package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sasachat/sasachat/internal/audit"
	"github.com/sasachat/sasachat/internal/domain"
	"github.com/sasachat/sasachat/internal/repository"
	"github.com/sasachat/sasachat/pkg/log"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNotCreator   = errors.New("only the creator can delete this room")
	ErrInvalidTitle = errors.New("title must not be blank")
)

// RoomDeletedNotifier tells live connections that a room is gone.
type RoomDeletedNotifier interface {
	RoomDeleted(ctx context.Context, roomID, deletedBy string) error
}

// PresenceReader is the read side of the membership registry.
type PresenceReader interface {
	ListNicknames(roomID string) []string
}

type roomServiceImpl struct {
	repo     repository.RoomRepository
	notifier RoomDeletedNotifier
	presence PresenceReader
}

func NewRoomService(repo repository.RoomRepository, notifier RoomDeletedNotifier, presence PresenceReader) RoomService {
	return &roomServiceImpl{repo: repo, notifier: notifier, presence: presence}
}

func (s *roomServiceImpl) CreateRoom(ctx context.Context, userID string, req *domain.CreateRoomRequest) (*domain.Room, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrInvalidTitle
	}

	room := &domain.Room{
		Title:     title,
		CreatorID: userID,
		Hashtags:  req.Hashtags,
	}
	if err := s.repo.Create(ctx, room); err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.ActionCreateRoom, userID, room.ID, "room created")
	return room, nil
}

func (s *roomServiceImpl) ListRooms(ctx context.Context) ([]domain.Room, error) {
	return s.repo.List(ctx)
}

func (s *roomServiceImpl) GetMyRooms(ctx context.Context, userID string) ([]domain.Room, error) {
	if userID == "" {
		return []domain.Room{}, nil
	}
	return s.repo.ListByParticipant(ctx, userID)
}

func (s *roomServiceImpl) JoinRoom(ctx context.Context, userID, roomID string) error {
	if err := s.repo.AddParticipant(ctx, roomID, userID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return err
	}
	audit.Log(ctx, audit.ActionJoinMember, userID, roomID, "joined room")
	return nil
}

func (s *roomServiceImpl) LeaveRoom(ctx context.Context, userID, roomID string) error {
	if err := s.repo.RemoveParticipant(ctx, roomID, userID); err != nil {
		return err
	}
	audit.Log(ctx, audit.ActionLeaveMember, userID, roomID, "left room")
	return nil
}

// DeleteRoom removes the room and its history, then closes it for live
// connections. A failed notification is logged; the deletion stands.
func (s *roomServiceImpl) DeleteRoom(ctx context.Context, userID, roomID string) error {
	room, err := s.repo.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return err
	}
	if room.CreatorID != userID {
		return ErrNotCreator
	}

	if err := s.repo.Delete(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return err
	}
	audit.Log(ctx, audit.ActionDeleteRoom, userID, roomID, "room deleted")

	if s.notifier != nil {
		if err := s.notifier.RoomDeleted(ctx, roomID, userID); err != nil {
			l := log.Ctx(ctx)
			l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to notify room deletion")
		}
	}
	return nil
}

func (s *roomServiceImpl) RoomUsers(ctx context.Context, roomID string) ([]string, error) {
	ok, err := s.repo.Exists(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRoomNotFound
	}

	if canonical, err := domain.NormalizeRoomID(roomID); err == nil {
		roomID = canonical
	}
	users := s.presence.ListNicknames(roomID)
	if users == nil {
		users = []string{}
	}
	return users, nil
}

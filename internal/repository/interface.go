//go:generate go run go.uber.org/mock/mockgen -source=interface.go -destination=../mocks/mock_room_repository.go -package=mocks

package repository

import (
	"context"
	"errors"

	"github.com/sasachat/sasachat/internal/domain"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomRepository persists chat rooms and their participant lists.
type RoomRepository interface {
	// Create inserts the room and enrols its creator in one transaction.
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id string) (*domain.Room, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]domain.Room, error)
	ListByParticipant(ctx context.Context, userID string) ([]domain.Room, error)
	AddParticipant(ctx context.Context, roomID, userID string) error
	RemoveParticipant(ctx context.Context, roomID, userID string) error
	// Delete removes the room with its participants and messages.
	Delete(ctx context.Context, id string) error
}

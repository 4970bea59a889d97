package service

import (
	"context"

	"github.com/sasachat/sasachat/internal/domain"
	"github.com/sasachat/sasachat/internal/hub"
	"github.com/sasachat/sasachat/internal/store"
)

// ChatService handles websocket events of one connection.
type ChatService interface {
	HandleAuth(ctx context.Context, c *hub.Client, token string) error
	HandleJoinRoom(ctx context.Context, c *hub.Client, roomID string) error
	HandleSendMessage(ctx context.Context, c *hub.Client, msg domain.SendMessageWS) error
	HandleLeaveRoom(ctx context.Context, c *hub.Client) error
	HandleDisconnect(ctx context.Context, c *hub.Client) error
}

// RoomService is the room CRUD used by the REST API.
type RoomService interface {
	CreateRoom(ctx context.Context, userID string, req *domain.CreateRoomRequest) (*domain.Room, error)
	ListRooms(ctx context.Context) ([]domain.Room, error)
	GetMyRooms(ctx context.Context, userID string) ([]domain.Room, error)
	JoinRoom(ctx context.Context, userID, roomID string) error
	LeaveRoom(ctx context.Context, userID, roomID string) error
	DeleteRoom(ctx context.Context, userID, roomID string) error
	RoomUsers(ctx context.Context, roomID string) ([]string, error)
}

// HistoryService serves paginated message history.
type HistoryService interface {
	GetMessages(ctx context.Context, roomID string, cursor int64, limit int, dir store.Direction) (*store.Page, error)
}

package service

import (
	"context"

	"github.com/sasachat/sasachat/internal/audit"
	"github.com/sasachat/sasachat/internal/domain"
	"github.com/sasachat/sasachat/internal/gateway"
	"github.com/sasachat/sasachat/internal/hub"
	"github.com/sasachat/sasachat/internal/identity"
	"github.com/sasachat/sasachat/pkg/log"
)

type chatService struct {
	gateway  *gateway.Gateway
	resolver *identity.Resolver
}

func NewChatService(gw *gateway.Gateway, resolver *identity.Resolver) ChatService {
	return &chatService{gateway: gw, resolver: resolver}
}

func (s *chatService) HandleAuth(ctx context.Context, c *hub.Client, token string) error {
	l := log.Ctx(ctx)

	id, err := s.resolver.Resolve(token)
	if err != nil {
		audit.Log(ctx, audit.ActionAuthFailed, "", c.ID, "websocket authentication failed")
		return c.SendMessage(&domain.AuthResultMessage{
			Type:    domain.MsgTypeAuthResult,
			Success: false,
			Message: "Invalid or expired session",
		})
	}

	if c.Session.IsAuthenticated() && c.Session.Identity().UserID != id.UserID {
		l.Warn().Str(log.FieldUserID, id.UserID).Msg("connection re-authenticated as another user")
		if err := s.gateway.Leave(ctx, c); err != nil {
			return err
		}
	}

	c.Session.Authenticate(id)
	audit.Log(ctx, audit.ActionAuth, id.UserID, c.ID, "websocket authenticated")

	return c.SendMessage(&domain.AuthResultMessage{
		Type:     domain.MsgTypeAuthResult,
		Success:  true,
		UserID:   id.UserID,
		Nickname: id.Nickname,
	})
}

func (s *chatService) HandleJoinRoom(ctx context.Context, c *hub.Client, roomID string) error {
	return s.gateway.Join(ctx, c, roomID)
}

func (s *chatService) HandleSendMessage(ctx context.Context, c *hub.Client, msg domain.SendMessageWS) error {
	return s.gateway.Send(ctx, c, msg)
}

func (s *chatService) HandleLeaveRoom(ctx context.Context, c *hub.Client) error {
	return s.gateway.Leave(ctx, c)
}

func (s *chatService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	return s.gateway.Disconnect(ctx, c)
}

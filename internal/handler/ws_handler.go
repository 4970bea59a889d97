package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sasachat/sasachat/internal/domain"
	"github.com/sasachat/sasachat/internal/hub"
	"github.com/sasachat/sasachat/internal/identity"
	"github.com/sasachat/sasachat/internal/metrics"
	"github.com/sasachat/sasachat/internal/service"
	"github.com/sasachat/sasachat/pkg/log"
)

type WSHandler struct {
	hub      *hub.Hub
	service  service.ChatService
	resolver *identity.Resolver
	wsCfg    hub.Config
	upgrader websocket.Upgrader
}

func NewWSHandler(h *hub.Hub, svc service.ChatService, resolver *identity.Resolver, wsCfg hub.Config) *WSHandler {
	wsCfg = wsCfg.WithDefaults()
	return &WSHandler{
		hub:      h,
		service:  svc,
		resolver: resolver,
		wsCfg:    wsCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  wsCfg.ReadBufferSize,
			WriteBufferSize: wsCfg.WriteBufferSize,
			CheckOrigin:     originChecker(wsCfg.AllowedOrigins),
		},
	}
}

// originChecker allows requests without an Origin header, the listed
// origins, or any origin when the list contains "*".
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	_, wildcard := set["*"]

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || wildcard {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && len(set) == 0 && strings.EqualFold(u.Host, r.Host)
	}
}

func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/chat/ws", gin.WrapF(h.HandleWebSocket))
}

// HandleWebSocket upgrades the connection. A token on the upgrade request
// authenticates the connection immediately; without one the client must
// send an auth event before joining.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	l := log.Ctx(r.Context())

	var id *domain.Identity
	if token := h.resolver.TokenFromRequest(r); token != "" {
		resolved, err := h.resolver.Resolve(token)
		if err != nil {
			l.Warn().Err(err).Msg("rejecting websocket with invalid session")
			http.Error(w, "invalid session", http.StatusUnauthorized)
			return
		}
		id = &resolved
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn, h.wsCfg)
	h.hub.Register(client)
	metrics.ConnectionsActive.Inc()

	if id != nil {
		client.Session.Authenticate(*id)
		_ = h.hub.SendTo(client, &domain.AuthResultMessage{
			Type:     domain.MsgTypeAuthResult,
			Success:  true,
			UserID:   id.UserID,
			Nickname: id.Nickname,
		})
	}

	l.Info().Str(log.FieldConnID, client.ID).Bool("authenticated", id != nil).Msg("websocket connected")

	go client.WritePump()
	go client.ReadPump(h.handleMessage, h.handleClose)
}

func (h *WSHandler) clientContext(client *hub.Client) context.Context {
	id := client.Session.Identity()
	return log.WithConn(context.Background(), client.ID, id.UserID, id.Nickname)
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		metrics.RecordEvent("invalid", metrics.OutcomeRejected)
		h.reply(client, domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	if !client.Allow() {
		metrics.RecordEvent(base.Type, metrics.OutcomeLimited)
		h.reply(client, domain.NewErrorMessage(domain.ErrCodeRateLimited, "Too many messages"))
		return
	}

	ctx := h.clientContext(client)
	l := log.Ctx(ctx).With().Str(log.FieldEvent, base.Type).Logger()

	var err error
	switch base.Type {
	case domain.MsgTypeAuth:
		var msg domain.AuthMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.reply(client, domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid auth message"))
			return
		}
		err = h.service.HandleAuth(ctx, client, msg.Token)

	case domain.MsgTypeJoinRoom:
		var msg domain.JoinRoomMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.reply(client, domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid join_room message"))
			return
		}
		err = h.service.HandleJoinRoom(ctx, client, msg.RoomID.String())

	case domain.MsgTypeSendMessage:
		var msg domain.SendMessageWS
		if err := json.Unmarshal(message, &msg); err != nil {
			h.reply(client, domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid send_message"))
			return
		}
		err = h.service.HandleSendMessage(ctx, client, msg)

	case domain.MsgTypeLeaveRoom:
		err = h.service.HandleLeaveRoom(ctx, client)

	case domain.MsgTypePing:
		h.reply(client, domain.BaseMessage{Type: domain.MsgTypePong})

	default:
		metrics.RecordEvent("unknown", metrics.OutcomeRejected)
		h.reply(client, domain.NewErrorMessage(domain.ErrCodeBadRequest, "Unknown message type"))
		return
	}

	if err != nil {
		metrics.RecordEvent(base.Type, metrics.OutcomeRejected)
		l.Warn().Err(err).Msg("failed to handle event")
		return
	}
	metrics.RecordEvent(base.Type, metrics.OutcomeOK)
}

func (h *WSHandler) handleClose(client *hub.Client) {
	metrics.ConnectionsActive.Dec()

	ctx := h.clientContext(client)
	if err := h.service.HandleDisconnect(ctx, client); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("disconnect cleanup failed")
	}
}

func (h *WSHandler) reply(client *hub.Client, message interface{}) {
	_ = h.hub.SendTo(client, message)
}

package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sasachat/sasachat/internal/audit"
	"github.com/sasachat/sasachat/internal/domain"
	"github.com/sasachat/sasachat/internal/hub"
	"github.com/sasachat/sasachat/internal/idgen"
	"github.com/sasachat/sasachat/internal/metrics"
	"github.com/sasachat/sasachat/internal/presence"
	"github.com/sasachat/sasachat/internal/registry"
	"github.com/sasachat/sasachat/internal/store"
	"github.com/sasachat/sasachat/pkg/log"
	"github.com/sasachat/sasachat/pkg/pubsub"
)

// ErrClosed is returned by operations submitted after Stop.
var ErrClosed = errors.New("gateway stopped")

const (
	joinNotice  = "%s님이 입장하셨습니다."
	leaveNotice = "%s님이 퇴장하셨습니다."
	closeNotice = "채팅방이 삭제되었습니다."
)

// Transport is the connection side of the gateway.
type Transport interface {
	JoinRoom(c *hub.Client, roomID string)
	LeaveRoom(c *hub.Client, roomID string)
	CloseRoom(roomID string) []*hub.Client
	BroadcastToRoom(roomID string, message interface{}, exclude string) (int, error)
	SendTo(c *hub.Client, message interface{}) error
	Member(roomID, clientID string) (*hub.Client, bool)
}

// RoomDirectory answers whether a room still exists in the CRUD layer.
type RoomDirectory interface {
	Exists(ctx context.Context, roomID string) (bool, error)
}

type Config struct {
	StoreTimeout      time.Duration `mapstructure:"store_timeout"`
	WorkerIdleTimeout time.Duration `mapstructure:"worker_idle_timeout"`
	MaxTextLength     int           `mapstructure:"max_text_length"`
	SystemSender      string        `mapstructure:"system_sender"`
	HistoryLimit      int           `mapstructure:"history_limit"` // 0 replays the whole log
	QueueSize         int           `mapstructure:"queue_size"`
}

func (c *Config) setDefaults() {
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 10 * time.Second
	}
	if c.WorkerIdleTimeout <= 0 {
		c.WorkerIdleTimeout = time.Minute
	}
	if c.MaxTextLength <= 0 {
		c.MaxTextLength = 1000
	}
	if c.SystemSender == "" {
		c.SystemSender = "알림"
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
}

// Gateway coordinates joins, sends and leaves. Every operation on a room
// runs on that room's worker, so persisted order equals broadcast order
// and a joiner's history replay cannot interleave with live messages.
type Gateway struct {
	transport Transport
	registry  registry.Registry
	store     store.MessageStore
	ids       idgen.Generator
	rooms     RoomDirectory    // optional
	publisher pubsub.Publisher // optional
	presence  *presence.Broadcaster
	config    Config
	now       func() time.Time

	mu      sync.Mutex
	workers map[string]*roomWorker
	stopped bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

func New(
	transport Transport,
	reg registry.Registry,
	st store.MessageStore,
	ids idgen.Generator,
	rooms RoomDirectory,
	publisher pubsub.Publisher,
	cfg Config,
) *Gateway {
	cfg.setDefaults()
	return &Gateway{
		transport: transport,
		registry:  reg,
		store:     st,
		ids:       ids,
		rooms:     rooms,
		publisher: publisher,
		presence:  presence.NewBroadcaster(transport, reg),
		config:    cfg,
		now:       time.Now,
		workers:   make(map[string]*roomWorker),
		stop:      make(chan struct{}),
	}
}

// Join moves c into roomID, leaving its current room first.
func (g *Gateway) Join(ctx context.Context, c *hub.Client, roomID string) error {
	if !c.Session.IsAuthenticated() {
		return g.reject(c, domain.ErrCodeUnauthorized, "Not authenticated")
	}
	if roomID == "" {
		return g.reject(c, domain.ErrCodeBadRequest, "roomId is required")
	}
	roomID, err := domain.NormalizeRoomID(roomID)
	if err != nil {
		return g.reject(c, domain.ErrCodeBadRequest, "Invalid roomId")
	}

	if current := c.Session.CurrentRoom(); current != "" && current != roomID {
		if err := g.Leave(ctx, c); err != nil {
			return err
		}
	}

	return g.submit(roomID, "join", func() { g.join(ctx, c, roomID) })
}

// Send appends a user message to the joined room and broadcasts it to the
// other members.
func (g *Gateway) Send(ctx context.Context, c *hub.Client, req domain.SendMessageWS) error {
	if !c.Session.IsAuthenticated() {
		return g.reject(c, domain.ErrCodeUnauthorized, "Not authenticated")
	}

	roomID := c.Session.CurrentRoom()
	if roomID == "" {
		return g.reject(c, domain.ErrCodeNotInRoom, "Not in this room")
	}
	if req.RoomID != "" {
		claimed, err := domain.NormalizeRoomID(req.RoomID.String())
		if err != nil {
			return g.reject(c, domain.ErrCodeBadRequest, "Invalid roomId")
		}
		if claimed != roomID {
			return g.reject(c, domain.ErrCodeNotInRoom, "Not in this room")
		}
	}

	if strings.TrimSpace(req.Text) == "" {
		return g.reject(c, domain.ErrCodeBadRequest, "Message is empty")
	}
	if utf8.RuneCountInString(req.Text) > g.config.MaxTextLength {
		return g.reject(c, domain.ErrCodeBadRequest, fmt.Sprintf("Message exceeds %d characters", g.config.MaxTextLength))
	}

	if req.Sender != "" && req.Sender != c.Session.Identity().Nickname {
		l := log.Ctx(ctx)
		l.Debug().Str("claimed_sender", req.Sender).Msg("ignoring client supplied sender")
	}

	return g.submit(roomID, "send", func() { g.send(ctx, c, roomID, req.Text) })
}

// Leave removes c from its room. Calling it again is a no-op.
func (g *Gateway) Leave(ctx context.Context, c *hub.Client) error {
	roomID := g.roomOf(c)
	if roomID == "" {
		return nil
	}
	return g.submit(roomID, "leave", func() { g.leave(ctx, c, roomID, audit.ActionLeaveRoom) })
}

// Disconnect is Leave for a connection that is gone.
func (g *Gateway) Disconnect(ctx context.Context, c *hub.Client) error {
	roomID := g.roomOf(c)
	if roomID == "" {
		return nil
	}
	return g.submit(roomID, "disconnect", func() { g.leave(ctx, c, roomID, audit.ActionDisconnect) })
}

// CloseRoom tells the members of a deleted room and drops them.
func (g *Gateway) CloseRoom(ctx context.Context, roomID string) error {
	if canonical, err := domain.NormalizeRoomID(roomID); err == nil {
		roomID = canonical
	}
	return g.submit(roomID, "close", func() { g.closeRoom(ctx, roomID) })
}

// Stop ends every room worker. Operations in flight return ErrClosed.
func (g *Gateway) Stop() {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return
	}
	g.stopped = true
	close(g.stop)
	g.mu.Unlock()

	g.wg.Wait()
}

func (g *Gateway) roomOf(c *hub.Client) string {
	if roomID := c.Session.CurrentRoom(); roomID != "" {
		return roomID
	}
	roomID, _ := g.registry.RoomOf(c.ID)
	return roomID
}

func (g *Gateway) join(ctx context.Context, c *hub.Client, roomID string) {
	ctx = log.WithRoom(ctx, roomID)
	l := log.Ctx(ctx)
	id := c.Session.Identity()

	if !g.roomExists(ctx, roomID) {
		l.Warn().Msg("join to unknown room")
		g.sendTo(ctx, c, domain.NewErrorMessage(domain.ErrCodeRoomNotFound, "Room not found"))
		return
	}

	g.transport.JoinRoom(c, roomID)
	c.Session.JoinRoom(roomID)

	history, err := g.history(ctx, roomID)
	if err != nil {
		l.Error().Err(err).Msg("failed to load history, joining without backfill")
		metrics.HistoryFailuresTotal.Inc()
		history = nil
	}
	g.sendTo(ctx, c, domain.NewChatHistoryMessage(roomID, history))

	displaced := g.holderOf(roomID, id.Nickname, c.ID)
	added := g.registry.Register(roomID, domain.Participant{
		ConnID:   c.ID,
		UserID:   id.UserID,
		Nickname: id.Nickname,
		JoinedAt: g.now(),
	})
	if displaced != "" {
		g.release(ctx, roomID, displaced)
	}

	users := g.presence.Broadcast(ctx, roomID)

	if !added {
		l.Debug().Msg("rejoin, no join notice")
		return
	}

	g.broadcastNotice(ctx, roomID, fmt.Sprintf(joinNotice, id.Nickname), c.ID)
	g.publish(ctx, roomID, pubsub.EventMemberJoined, pubsub.MembershipPayload{
		UserID:   id.UserID,
		Nickname: id.Nickname,
		Users:    users,
	})
	audit.Log(ctx, audit.ActionJoinRoom, id.UserID, roomID, "joined room")
}

func (g *Gateway) send(ctx context.Context, c *hub.Client, roomID, text string) {
	ctx = log.WithRoom(ctx, roomID)
	l := log.Ctx(ctx)

	// The room may have been closed, or the nickname taken over by another
	// connection, while the task was queued.
	if current, ok := g.registry.RoomOf(c.ID); !ok || current != roomID || c.Session.CurrentRoom() != roomID {
		g.sendTo(ctx, c, domain.NewErrorMessage(domain.ErrCodeNotInRoom, "Not in this room"))
		return
	}

	nickname := c.Session.Identity().Nickname
	persisted := true

	storeCtx, cancel := context.WithTimeout(ctx, g.config.StoreTimeout)
	msg, err := g.store.Append(storeCtx, roomID, nickname, text)
	cancel()

	switch {
	case errors.Is(err, store.ErrRoomNotFound):
		l.Warn().Msg("send to deleted room dropped")
		g.sendTo(ctx, c, domain.NewErrorMessage(domain.ErrCodeRoomNotFound, "Room not found"))
		return
	case err != nil:
		l.Error().Err(err).Msg("failed to persist message, delivering anyway")
		metrics.PersistFailuresTotal.Inc()
		persisted = false
		now := g.now()
		msg = &domain.Message{
			ID:        g.nextID(now),
			RoomID:    roomID,
			Sender:    nickname,
			Text:      text,
			CreatedAt: now,
		}
	}

	if _, err := g.transport.BroadcastToRoom(roomID, domain.NewReceiveMessage(*msg), c.ID); err != nil {
		l.Error().Err(err).Msg("failed to broadcast message")
		return
	}
	metrics.MessagesTotal.Inc()

	g.publish(ctx, roomID, pubsub.EventMessageSent, pubsub.MessageSentPayload{
		MessageID: msg.ID,
		Sender:    msg.Sender,
		Text:      msg.Text,
		Persisted: persisted,
		CreatedAt: msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

func (g *Gateway) leave(ctx context.Context, c *hub.Client, roomID, action string) {
	ctx = log.WithRoom(ctx, roomID)

	g.transport.LeaveRoom(c, roomID)
	c.Session.LeaveRoom(roomID)

	if current, ok := g.registry.RoomOf(c.ID); !ok || current != roomID {
		return
	}
	_, p, ok := g.registry.Unregister(c.ID)
	if !ok {
		return
	}

	users := g.presence.Broadcast(ctx, roomID)
	g.broadcastNotice(ctx, roomID, fmt.Sprintf(leaveNotice, p.Nickname), "")
	g.publish(ctx, roomID, pubsub.EventMemberLeft, pubsub.MembershipPayload{
		UserID:   p.UserID,
		Nickname: p.Nickname,
		Users:    users,
	})
	audit.Log(ctx, action, p.UserID, roomID, "left room")
}

func (g *Gateway) closeRoom(ctx context.Context, roomID string) {
	ctx = log.WithRoom(ctx, roomID)
	l := log.Ctx(ctx)

	g.broadcastNotice(ctx, roomID, closeNotice, "")
	g.presence.Send(ctx, roomID, []string{})

	clients := g.transport.CloseRoom(roomID)
	for _, c := range clients {
		c.Session.LeaveRoom(roomID)
	}
	removed := g.registry.RemoveRoom(roomID)

	g.publish(ctx, roomID, pubsub.EventRoomClosed, pubsub.MembershipPayload{Users: []string{}})
	audit.LogWithDetail(ctx, audit.ActionRoomClosed, "", roomID,
		fmt.Sprintf("connections=%d participants=%d", len(clients), len(removed)), "room closed")
	l.Info().Int("connections", len(clients)).Msg("room closed")
}

// holderOf returns the connection currently registered under nickname in
// roomID, if it is not connID.
func (g *Gateway) holderOf(roomID, nickname, connID string) string {
	for _, p := range g.registry.Participants(roomID) {
		if p.Nickname == nickname && p.ConnID != connID {
			return p.ConnID
		}
	}
	return ""
}

// release unjoins a connection whose nickname was taken over, so it stops
// receiving and posting into the room.
func (g *Gateway) release(ctx context.Context, roomID, connID string) {
	l := log.Ctx(ctx)
	l.Info().Str("displaced_conn", connID).Msg("nickname rebound to newer connection")

	old, ok := g.transport.Member(roomID, connID)
	if !ok {
		return
	}
	g.transport.LeaveRoom(old, roomID)
	old.Session.LeaveRoom(roomID)
	g.sendTo(ctx, old, domain.NewErrorMessage(domain.ErrCodeNotInRoom, "Joined from another connection"))
}

// nextID gives live-only messages an id from the same sequence as stored
// ones, so ids never collide on the client.
func (g *Gateway) nextID(now time.Time) int64 {
	if g.ids != nil {
		if id, err := g.ids.NextID(); err == nil {
			return id
		}
	}
	return now.UnixNano()
}

func (g *Gateway) roomExists(ctx context.Context, roomID string) bool {
	if g.rooms == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, g.config.StoreTimeout)
	defer cancel()

	ok, err := g.rooms.Exists(ctx, roomID)
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("room lookup failed, allowing join")
		return true
	}
	return ok
}

func (g *Gateway) history(ctx context.Context, roomID string) ([]domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.StoreTimeout)
	defer cancel()
	return g.store.History(ctx, roomID, g.config.HistoryLimit)
}

func (g *Gateway) broadcastNotice(ctx context.Context, roomID, text, exclude string) {
	now := g.now()
	notice := domain.NewSystemMessage(roomID, g.config.SystemSender, text, now)
	notice.ID = g.nextID(now)
	if _, err := g.transport.BroadcastToRoom(roomID, domain.NewReceiveMessage(notice), exclude); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to broadcast notice")
	}
}

func (g *Gateway) sendTo(ctx context.Context, c *hub.Client, message interface{}) {
	if err := g.transport.SendTo(c, message); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldConnID, c.ID).Msg("failed to send to client")
	}
}

func (g *Gateway) reject(c *hub.Client, code, message string) error {
	return g.transport.SendTo(c, domain.NewErrorMessage(code, message))
}

func (g *Gateway) publish(ctx context.Context, roomID, eventType string, payload interface{}) {
	if g.publisher == nil {
		return
	}
	l := log.Ctx(ctx)

	event, err := pubsub.NewEvent(eventType, roomID, payload)
	if err != nil {
		l.Error().Err(err).Str(log.FieldEvent, eventType).Msg("failed to build event")
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, g.config.StoreTimeout)
	defer cancel()
	if err := g.publisher.Publish(pubCtx, pubsub.ChatToObserversChannel(roomID), event); err != nil {
		l.Warn().Err(err).Str(log.FieldEvent, eventType).Msg("failed to publish event")
	}
}

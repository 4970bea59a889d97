//go:generate go run go.uber.org/mock/mockgen -source=redis_mirror.go -destination=../mocks/mock_set_store.go -package=mocks

package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sasachat/sasachat/internal/domain"
	"github.com/sasachat/sasachat/pkg/log"
)

// SetStore is the subset of Redis set operations the mirror needs.
type SetStore interface {
	Add(ctx context.Context, key, member string, ttl time.Duration) error
	Remove(ctx context.Context, key, member string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type redisSetStore struct {
	client *redis.Client
}

// NewRedisSetStore adapts a go-redis client to SetStore.
func NewRedisSetStore(client *redis.Client) SetStore {
	return &redisSetStore{client: client}
}

func (s *redisSetStore) Add(ctx context.Context, key, member string, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, key, member)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisSetStore) Remove(ctx context.Context, key, member string) error {
	return s.client.SRem(ctx, key, member).Err()
}

func (s *redisSetStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s *redisSetStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

type mirrorOp struct {
	kind     string // add, remove, drop
	roomID   string
	nickname string
}

// MirrorConfig configures RedisMirror.
type MirrorConfig struct {
	Prefix            string        `mapstructure:"prefix"`
	KeyTTL            time.Duration `mapstructure:"key_ttl"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	QueueSize         int           `mapstructure:"queue_size"`
}

// RedisMirror decorates a Registry and copies room presence into Redis
// sets ({prefix}:room:{roomID}:users) for other instances and operators.
// The wrapped registry stays authoritative; Redis writes happen on a
// background goroutine in mutation order and failures are only logged.
type RedisMirror struct {
	Registry

	store SetStore
	cfg   MirrorConfig
	ops   chan mirrorOp

	mu          sync.Mutex
	managedKeys map[string]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRedisMirror(inner Registry, store SetStore, cfg MirrorConfig) *RedisMirror {
	if cfg.Prefix == "" {
		cfg.Prefix = "presence"
	}
	if cfg.KeyTTL <= 0 {
		cfg.KeyTTL = 2 * time.Minute
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = cfg.KeyTTL / 3
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	return &RedisMirror{
		Registry:    inner,
		store:       store,
		cfg:         cfg,
		ops:         make(chan mirrorOp, cfg.QueueSize),
		managedKeys: make(map[string]struct{}),
		done:        make(chan struct{}),
	}
}

// UsersKey is the Redis set holding a room's nicknames.
func (m *RedisMirror) UsersKey(roomID string) string {
	return fmt.Sprintf("%s:room:%s:users", m.cfg.Prefix, roomID)
}

// Register mirrors the add and, when the connection was moved out of
// another entry, the implicit removal of that entry.
func (m *RedisMirror) Register(roomID string, p domain.Participant) bool {
	prevRoom, prevNick, had := m.entryOf(p.ConnID)
	added := m.Registry.Register(roomID, p)
	if had && (prevRoom != roomID || prevNick != p.Nickname) {
		m.enqueue(mirrorOp{kind: "remove", roomID: prevRoom, nickname: prevNick})
	}
	if added {
		m.enqueue(mirrorOp{kind: "add", roomID: roomID, nickname: p.Nickname})
	}
	return added
}

func (m *RedisMirror) entryOf(connID string) (roomID, nickname string, ok bool) {
	roomID, ok = m.Registry.RoomOf(connID)
	if !ok {
		return "", "", false
	}
	for _, p := range m.Registry.Participants(roomID) {
		if p.ConnID == connID {
			return roomID, p.Nickname, true
		}
	}
	return "", "", false
}

func (m *RedisMirror) Unregister(connID string) (string, domain.Participant, bool) {
	roomID, p, ok := m.Registry.Unregister(connID)
	if ok {
		m.enqueue(mirrorOp{kind: "remove", roomID: roomID, nickname: p.Nickname})
	}
	return roomID, p, ok
}

func (m *RedisMirror) RemoveRoom(roomID string) []domain.Participant {
	removed := m.Registry.RemoveRoom(roomID)
	m.enqueue(mirrorOp{kind: "drop", roomID: roomID})
	return removed
}

func (m *RedisMirror) enqueue(op mirrorOp) {
	select {
	case m.ops <- op:
	default:
		l := log.L()
		l.Warn().Str(log.FieldRoomID, op.roomID).Str("op", op.kind).Msg("presence mirror queue full, update dropped")
	}
}

// Start runs the writer and the TTL heartbeat until Stop or ctx is done.
func (m *RedisMirror) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	go m.run(ctx)

	l := log.L()
	l.Info().Dur("interval", m.cfg.HeartbeatInterval).Dur("ttl", m.cfg.KeyTTL).Msg("presence mirror started")
}

func (m *RedisMirror) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

func (m *RedisMirror) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case op := <-m.ops:
			m.apply(ctx, op)
		case <-ticker.C:
			m.refreshKeys(ctx)
		}
	}
}

func (m *RedisMirror) apply(ctx context.Context, op mirrorOp) {
	key := m.UsersKey(op.roomID)
	l := log.L()

	var err error
	switch op.kind {
	case "add":
		err = m.store.Add(ctx, key, op.nickname, m.cfg.KeyTTL)
		m.mu.Lock()
		m.managedKeys[key] = struct{}{}
		m.mu.Unlock()
	case "remove":
		err = m.store.Remove(ctx, key, op.nickname)
		if m.Registry.Count(op.roomID) == 0 {
			m.forget(key)
		}
	case "drop":
		err = m.store.Delete(ctx, key)
		m.forget(key)
	}
	if err != nil {
		l.Error().Err(err).Str("key", key).Str("op", op.kind).Msg("presence mirror write failed")
	}
}

func (m *RedisMirror) forget(key string) {
	m.mu.Lock()
	delete(m.managedKeys, key)
	m.mu.Unlock()
}

func (m *RedisMirror) refreshKeys(ctx context.Context) {
	m.mu.Lock()
	keys := make([]string, 0, len(m.managedKeys))
	for k := range m.managedKeys {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	for _, key := range keys {
		if err := m.store.Expire(ctx, key, m.cfg.KeyTTL); err != nil {
			l := log.L()
			l.Error().Str("key", key).Err(err).Msg("failed to refresh presence key")
		}
	}
}

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/sasachat/sasachat/internal/domain"
	"github.com/sasachat/sasachat/internal/idgen"
)

// CassandraConfig holds the Cassandra connection settings.
type CassandraConfig struct {
	Hosts          []string      `mapstructure:"hosts"`
	Keyspace       string        `mapstructure:"keyspace"`
	Consistency    string        `mapstructure:"consistency"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// Schema of the messages_by_room table. Snowflake ids grow with time, so
// clustering by message_id is creation order.
const CassandraSchema = `CREATE TABLE IF NOT EXISTS messages_by_room (
	room_id text,
	message_id bigint,
	sender_nickname text,
	content text,
	is_system boolean,
	created_at timestamp,
	PRIMARY KEY ((room_id), message_id)
) WITH CLUSTERING ORDER BY (message_id ASC)`

const selectColumns = `SELECT message_id, room_id, sender_nickname, content, is_system, created_at FROM messages_by_room`

// CassandraMessageStore keeps messages in a wide row per room. It has no
// view of the chatrooms table; deleted rooms are handled by CloseRoom
// removing every member before anyone can send.
type CassandraMessageStore struct {
	session *gocql.Session
	ids     idgen.Generator
	now     func() time.Time
}

func parseConsistency(s string) gocql.Consistency {
	switch s {
	case "LOCAL_QUORUM":
		return gocql.LocalQuorum
	case "ONE":
		return gocql.One
	case "QUORUM":
		return gocql.Quorum
	default:
		return gocql.LocalOne
	}
}

func NewCassandraMessageStore(cfg CassandraConfig, ids idgen.Generator) (*CassandraMessageStore, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = parseConsistency(cfg.Consistency)
	if cfg.ConnectTimeout > 0 {
		cluster.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create cassandra session: %w", err)
	}

	if err := session.Query(CassandraSchema).Exec(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to create messages_by_room: %w", err)
	}

	return &CassandraMessageStore{session: session, ids: ids, now: time.Now}, nil
}

func (s *CassandraMessageStore) Append(ctx context.Context, roomID, sender, text string) (*domain.Message, error) {
	id, err := s.ids.NextID()
	if err != nil {
		return nil, fmt.Errorf("%w: generate id: %v", ErrStorage, err)
	}

	msg := domain.Message{
		ID:        id,
		RoomID:    roomID,
		Sender:    sender,
		Text:      text,
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}

	err = s.session.Query(
		`INSERT INTO messages_by_room (room_id, message_id, sender_nickname, content, is_system, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.RoomID, msg.ID, msg.Sender, msg.Text, false, msg.CreatedAt,
	).WithContext(ctx).Exec()
	if err != nil {
		return nil, fmt.Errorf("%w: insert message: %v", ErrStorage, err)
	}

	return &msg, nil
}

func (s *CassandraMessageStore) History(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	var (
		msgs []domain.Message
		err  error
	)
	if limit <= 0 {
		msgs, err = s.scan(ctx, selectColumns+` WHERE room_id = ? ORDER BY message_id ASC`, roomID)
	} else {
		msgs, err = s.scan(ctx, selectColumns+` WHERE room_id = ? ORDER BY message_id DESC LIMIT ?`, roomID, limit)
		for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		}
	}
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *CassandraMessageStore) Page(ctx context.Context, roomID string, cursor int64, limit int, dir Direction) (*Page, error) {
	var (
		query string
		args  = []interface{}{roomID}
	)

	switch {
	case dir == DirectionForward && cursor > 0:
		query = selectColumns + ` WHERE room_id = ? AND message_id > ? ORDER BY message_id ASC LIMIT ?`
		args = append(args, cursor)
	case dir == DirectionForward:
		query = selectColumns + ` WHERE room_id = ? ORDER BY message_id ASC LIMIT ?`
	case cursor > 0:
		query = selectColumns + ` WHERE room_id = ? AND message_id < ? ORDER BY message_id DESC LIMIT ?`
		args = append(args, cursor)
	default:
		query = selectColumns + ` WHERE room_id = ? ORDER BY message_id DESC LIMIT ?`
	}
	args = append(args, limit+1)

	msgs, err := s.scan(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return trimPage(msgs, limit), nil
}

func (s *CassandraMessageStore) scan(ctx context.Context, query string, args ...interface{}) ([]domain.Message, error) {
	iter := s.session.Query(query, args...).WithContext(ctx).Iter()

	msgs := []domain.Message{}
	var m domain.Message
	for iter.Scan(&m.ID, &m.RoomID, &m.Sender, &m.Text, &m.IsSystem, &m.CreatedAt) {
		msgs = append(msgs, m)
		m = domain.Message{}
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("%w: iterate messages: %v", ErrStorage, err)
	}
	return msgs, nil
}

func (s *CassandraMessageStore) Close() error {
	s.session.Close()
	return nil
}

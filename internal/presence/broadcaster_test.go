package presence

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sasachat/sasachat/internal/domain"
	"github.com/sasachat/sasachat/internal/registry"
)

type recordingSender struct {
	rooms    []string
	messages []interface{}
	err      error
}

func (s *recordingSender) BroadcastToRoom(roomID string, message interface{}, exclude string) (int, error) {
	s.rooms = append(s.rooms, roomID)
	s.messages = append(s.messages, message)
	return len(s.messages), s.err
}

func TestBroadcaster_Broadcast(t *testing.T) {
	ctx := context.Background()

	t.Run("should send the nicknames in registration order", func(t *testing.T) {
		reg := registry.NewMemoryRegistry()
		reg.Register("7", domain.Participant{ConnID: "c1", Nickname: "bob", JoinedAt: time.Now()})
		reg.Register("7", domain.Participant{ConnID: "c2", Nickname: "alice", JoinedAt: time.Now()})
		sender := &recordingSender{}

		users := NewBroadcaster(sender, reg).Broadcast(ctx, "7")
		require.Equal(t, []string{"bob", "alice"}, users)
		require.Equal(t, []string{"7"}, sender.rooms)

		data, err := json.Marshal(sender.messages[0])
		require.NoError(t, err)
		require.JSONEq(t, `{"type":"room_users","roomId":"7","users":["bob","alice"],"count":2}`, string(data))
	})

	t.Run("should send an empty list for an empty room", func(t *testing.T) {
		sender := &recordingSender{}

		users := NewBroadcaster(sender, registry.NewMemoryRegistry()).Broadcast(ctx, "9")
		require.Empty(t, users)

		msg, ok := sender.messages[0].(*domain.RoomUsersMessage)
		require.True(t, ok)
		require.NotNil(t, msg.Users)
		require.Zero(t, msg.Count)
	})

	t.Run("should swallow transport errors", func(t *testing.T) {
		sender := &recordingSender{err: errors.New("boom")}
		require.NotPanics(t, func() {
			NewBroadcaster(sender, registry.NewMemoryRegistry()).Broadcast(ctx, "7")
		})
	})
}

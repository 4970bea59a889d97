package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sasachat/sasachat/pkg/pubsub"
)

type fakeCloser struct {
	mu     sync.Mutex
	closed []string
	err    error
}

func (f *fakeCloser) CloseRoom(_ context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, roomID)
	return f.err
}

func (f *fakeCloser) rooms() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.closed...)
}

type fakeCache struct{ invalidated []string }

func (f *fakeCache) Invalidate(_ context.Context, roomID string) error {
	f.invalidated = append(f.invalidated, roomID)
	return nil
}

type fakeBus struct {
	published map[string]*pubsub.Event
	ch        chan *pubsub.Event
	pattern   string
	err       error
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: map[string]*pubsub.Event{}, ch: make(chan *pubsub.Event, 1)}
}

func (b *fakeBus) Publish(_ context.Context, channel string, event *pubsub.Event) error {
	if b.err != nil {
		return b.err
	}
	b.published[channel] = event
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan *pubsub.Event, error) {
	return b.ch, nil
}

func (b *fakeBus) SubscribePattern(_ context.Context, pattern string) (<-chan *pubsub.Event, error) {
	b.pattern = pattern
	return b.ch, nil
}

func (b *fakeBus) Unsubscribe(context.Context, string) error { return nil }

func roomDeleted(t *testing.T, roomID string) *pubsub.Event {
	t.Helper()
	e, err := pubsub.NewEvent(pubsub.EventRoomDeleted, roomID, pubsub.RoomDeletedPayload{RoomID: roomID, DeletedBy: "u1"})
	require.NoError(t, err)
	return e
}

func TestListener_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("should close the room and drop its cache", func(t *testing.T) {
		closer := &fakeCloser{}
		cache := &fakeCache{}
		NewListener(newFakeBus(), closer, cache).Handle(ctx, roomDeleted(t, "7"))

		require.Equal(t, []string{"7"}, closer.rooms())
		require.Equal(t, []string{"7"}, cache.invalidated)
	})

	t.Run("should ignore other event types", func(t *testing.T) {
		closer := &fakeCloser{}
		e, err := pubsub.NewEvent(pubsub.EventMessageSent, "7", pubsub.MessageSentPayload{})
		require.NoError(t, err)

		NewListener(newFakeBus(), closer, nil).Handle(ctx, e)
		require.Empty(t, closer.rooms())
	})

	t.Run("should still invalidate when closing fails", func(t *testing.T) {
		closer := &fakeCloser{err: errors.New("stopped")}
		cache := &fakeCache{}
		NewListener(newFakeBus(), closer, cache).Handle(ctx, roomDeleted(t, "7"))
		require.Equal(t, []string{"7"}, cache.invalidated)
	})
}

func TestListener_Start(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newFakeBus()
	closer := &fakeCloser{}
	require.NoError(t, NewListener(bus, closer, nil).Start(ctx))
	require.Equal(t, "rooms:room:*:to_chat", bus.pattern)

	bus.ch <- roomDeleted(t, "9")
	require.Eventually(t, func() bool { return len(closer.rooms()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"9"}, closer.rooms())
}

func TestDispatcher_RoomDeleted(t *testing.T) {
	ctx := context.Background()

	t.Run("should publish on the room lifecycle channel", func(t *testing.T) {
		bus := newFakeBus()
		closer := &fakeCloser{}
		d := NewDispatcher(bus, NewListener(bus, closer, nil))

		require.NoError(t, d.RoomDeleted(ctx, "7", "u1"))
		e, ok := bus.published["rooms:room:7:to_chat"]
		require.True(t, ok)
		require.Equal(t, pubsub.EventRoomDeleted, e.Type)
		require.Empty(t, closer.rooms(), "the listener closes the room when the event comes back")
	})

	t.Run("should close locally without a bus", func(t *testing.T) {
		closer := &fakeCloser{}
		d := NewDispatcher(nil, NewListener(nil, closer, nil))

		require.NoError(t, d.RoomDeleted(ctx, "7", "u1"))
		require.Equal(t, []string{"7"}, closer.rooms())
	})

	t.Run("should report publish failures", func(t *testing.T) {
		bus := newFakeBus()
		bus.err = errors.New("broker down")
		d := NewDispatcher(bus, NewListener(bus, &fakeCloser{}, nil))

		require.Error(t, d.RoomDeleted(ctx, "7", "u1"))
	})
}

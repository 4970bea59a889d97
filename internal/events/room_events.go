package events

import (
	"context"
	"fmt"

	"github.com/sasachat/sasachat/pkg/log"
	"github.com/sasachat/sasachat/pkg/pubsub"
)

// RoomCloser ends the live side of a room on this instance.
type RoomCloser interface {
	CloseRoom(ctx context.Context, roomID string) error
}

// CacheInvalidator drops cached history pages of a room.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, roomID string) error
}

// RoomDeletedPattern matches the room lifecycle channel of every room.
var RoomDeletedPattern = fmt.Sprintf(pubsub.ChannelRoomsToChat, "*")

// Listener applies room lifecycle events coming from the CRUD layer.
type Listener struct {
	sub    pubsub.Subscriber
	closer RoomCloser
	cache  CacheInvalidator // optional
}

func NewListener(sub pubsub.Subscriber, closer RoomCloser, cache CacheInvalidator) *Listener {
	return &Listener{sub: sub, closer: closer, cache: cache}
}

// Start subscribes to the lifecycle channels and handles events until ctx
// is done.
func (l *Listener) Start(ctx context.Context) error {
	ch, err := l.sub.SubscribePattern(ctx, RoomDeletedPattern)
	if err != nil {
		return fmt.Errorf("subscribe room events: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-ch:
				if !ok {
					return
				}
				l.Handle(ctx, event)
			}
		}
	}()

	logger := log.Ctx(ctx)
	logger.Info().Str(log.FieldChannel, RoomDeletedPattern).Msg("listening for room events")
	return nil
}

// Handle applies one event. Unknown event types are ignored.
func (l *Listener) Handle(ctx context.Context, event *pubsub.Event) {
	logger := log.Ctx(ctx).With().
		Str(log.FieldEvent, event.Type).
		Str(log.FieldRoomID, event.RoomID).
		Logger()

	if event.Type != pubsub.EventRoomDeleted {
		logger.Debug().Msg("ignoring room event")
		return
	}

	var payload pubsub.RoomDeletedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		logger.Warn().Err(err).Msg("malformed room_deleted payload")
		return
	}
	roomID := payload.RoomID
	if roomID == "" {
		roomID = event.RoomID
	}

	if err := l.closer.CloseRoom(ctx, roomID); err != nil {
		logger.Error().Err(err).Msg("failed to close deleted room")
	}
	if l.cache != nil {
		if err := l.cache.Invalidate(ctx, roomID); err != nil {
			logger.Warn().Err(err).Msg("failed to invalidate history cache")
		}
	}
	logger.Info().Str(log.FieldUserID, payload.DeletedBy).Msg("deleted room closed")
}

// Dispatcher announces room deletions. With a bus every instance hears
// the event through its Listener; without one the local Listener is
// invoked directly.
type Dispatcher struct {
	publisher pubsub.Publisher // optional
	local     *Listener
}

func NewDispatcher(publisher pubsub.Publisher, local *Listener) *Dispatcher {
	return &Dispatcher{publisher: publisher, local: local}
}

func (d *Dispatcher) RoomDeleted(ctx context.Context, roomID, deletedBy string) error {
	event, err := pubsub.NewEvent(pubsub.EventRoomDeleted, roomID, pubsub.RoomDeletedPayload{
		RoomID:    roomID,
		DeletedBy: deletedBy,
	})
	if err != nil {
		return fmt.Errorf("build room_deleted event: %w", err)
	}

	if d.publisher == nil {
		d.local.Handle(ctx, event)
		return nil
	}
	if err := d.publisher.Publish(ctx, pubsub.RoomsToChatChannel(roomID), event); err != nil {
		return fmt.Errorf("publish room_deleted: %w", err)
	}
	return nil
}

package registry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sasachat/sasachat/internal/domain"
	"github.com/sasachat/sasachat/internal/mocks"
	"github.com/sasachat/sasachat/internal/registry"
)

func TestRedisMirror(t *testing.T) {
	ctrl := gomock.NewController(t)
	setStore := mocks.NewMockSetStore(ctrl)

	mirror := registry.NewRedisMirror(registry.NewMemoryRegistry(), setStore, registry.MirrorConfig{
		Prefix:            "presence",
		KeyTTL:            time.Minute,
		HeartbeatInterval: time.Hour,
	})

	done := make(chan struct{})
	gomock.InOrder(
		setStore.EXPECT().Add(gomock.Any(), "presence:room:7:users", "alice", time.Minute).Return(nil),
		setStore.EXPECT().Remove(gomock.Any(), "presence:room:7:users", "alice").Return(nil),
		setStore.EXPECT().Delete(gomock.Any(), "presence:room:7:users").DoAndReturn(
			func(context.Context, string) error {
				close(done)
				return nil
			}),
	)

	mirror.Start(context.Background())
	defer mirror.Stop()

	require.True(t, mirror.Register("7", domain.Participant{ConnID: "c1", Nickname: "alice"}))
	require.False(t, mirror.Register("7", domain.Participant{ConnID: "c1", Nickname: "alice"}), "no-op is not mirrored")
	require.Equal(t, []string{"alice"}, mirror.ListNicknames("7"))

	_, _, ok := mirror.Unregister("c1")
	require.True(t, ok)
	_, _, ok = mirror.Unregister("c1")
	require.False(t, ok, "unknown connection is not mirrored")

	mirror.RemoveRoom("7")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("mirror did not apply updates")
	}
}

func TestRedisMirror_MoveRemovesOldEntry(t *testing.T) {
	ctrl := gomock.NewController(t)
	setStore := mocks.NewMockSetStore(ctrl)

	mirror := registry.NewRedisMirror(registry.NewMemoryRegistry(), setStore, registry.MirrorConfig{
		Prefix:            "presence",
		KeyTTL:            time.Minute,
		HeartbeatInterval: time.Hour,
	})

	done := make(chan struct{})
	gomock.InOrder(
		setStore.EXPECT().Add(gomock.Any(), "presence:room:7:users", "alice", time.Minute).Return(nil),
		setStore.EXPECT().Remove(gomock.Any(), "presence:room:7:users", "alice").Return(nil),
		setStore.EXPECT().Add(gomock.Any(), "presence:room:8:users", "alice", time.Minute).DoAndReturn(
			func(context.Context, string, string, time.Duration) error {
				close(done)
				return nil
			}),
	)

	mirror.Start(context.Background())
	defer mirror.Stop()

	require.True(t, mirror.Register("7", domain.Participant{ConnID: "c1", Nickname: "alice"}))
	require.True(t, mirror.Register("8", domain.Participant{ConnID: "c1", Nickname: "alice"}))
	require.Empty(t, mirror.ListNicknames("7"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("mirror did not apply updates")
	}
}

func TestRedisMirror_WriteFailureIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	setStore := mocks.NewMockSetStore(ctrl)

	mirror := registry.NewRedisMirror(registry.NewMemoryRegistry(), setStore, registry.MirrorConfig{HeartbeatInterval: time.Hour})

	applied := make(chan struct{})
	setStore.EXPECT().Add(gomock.Any(), gomock.Any(), "bob", gomock.Any()).DoAndReturn(
		func(context.Context, string, string, time.Duration) error {
			close(applied)
			return context.DeadlineExceeded
		})

	mirror.Start(context.Background())
	defer mirror.Stop()

	require.True(t, mirror.Register("9", domain.Participant{ConnID: "c2", Nickname: "bob"}))
	<-applied
	require.Equal(t, []string{"bob"}, mirror.ListNicknames("9"))
}

package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sasachat/sasachat/internal/cache"
	"github.com/sasachat/sasachat/internal/domain"
	"github.com/sasachat/sasachat/internal/mocks"
	"github.com/sasachat/sasachat/internal/store"
)

func TestBuildKey(t *testing.T) {
	require.Equal(t, "chat:history:7:start:backward:50", cache.BuildKey("chat:history", "7", 0, store.DirectionBackward, 50))
	require.Equal(t, "chat:history:7:123:forward:10", cache.BuildKey("chat:history", "7", 123, store.DirectionForward, 10))
}

func TestCachedPager(t *testing.T) {
	ctx := context.Background()
	page := &store.Page{Messages: []domain.Message{{ID: 3, Text: "c"}}, NextCursor: 3, HasMore: true}

	t.Run("should always read the newest page from the store", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		s := mocks.NewMockMessageStore(ctrl)
		c := mocks.NewMockPageCache(ctrl)

		s.EXPECT().Page(ctx, "7", int64(0), 10, store.DirectionBackward).Return(page, nil)

		got, err := cache.NewCachedPager(s, c, "", time.Minute).Page(ctx, "7", 0, 10, store.DirectionBackward)
		require.NoError(t, err)
		require.Equal(t, page, got)
	})

	t.Run("should serve a cached older page", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		s := mocks.NewMockMessageStore(ctrl)
		c := mocks.NewMockPageCache(ctrl)

		c.EXPECT().Get(gomock.Any(), "chat:history:7:10:backward:10").Return(page, nil)

		got, err := cache.NewCachedPager(s, c, "", time.Minute).Page(ctx, "7", 10, 10, store.DirectionBackward)
		require.NoError(t, err)
		require.Equal(t, page, got)
	})

	t.Run("should fill the cache on a miss", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		s := mocks.NewMockMessageStore(ctrl)
		c := mocks.NewMockPageCache(ctrl)

		stored := make(chan struct{})
		c.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, cache.ErrCacheMiss)
		s.EXPECT().Page(gomock.Any(), "7", int64(10), 10, store.DirectionBackward).Return(page, nil)
		c.EXPECT().Set(gomock.Any(), "chat:history:7:10:backward:10", page, time.Minute).DoAndReturn(
			func(context.Context, string, *store.Page, time.Duration) error {
				close(stored)
				return nil
			})

		got, err := cache.NewCachedPager(s, c, "", time.Minute).Page(ctx, "7", 10, 10, store.DirectionBackward)
		require.NoError(t, err)
		require.Equal(t, page, got)

		select {
		case <-stored:
		case <-time.After(time.Second):
			t.Fatal("page was not cached")
		}
	})

	t.Run("should not cache a forward page that can still grow", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		s := mocks.NewMockMessageStore(ctrl)
		c := mocks.NewMockPageCache(ctrl)

		tail := &store.Page{Messages: []domain.Message{{ID: 11}}, NextCursor: 11}
		c.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, cache.ErrCacheMiss)
		s.EXPECT().Page(gomock.Any(), "7", int64(10), 10, store.DirectionForward).Return(tail, nil)

		got, err := cache.NewCachedPager(s, c, "", time.Minute).Page(ctx, "7", 10, 10, store.DirectionForward)
		require.NoError(t, err)
		require.Equal(t, tail, got)
	})

	t.Run("should fall back to the store when the cache errors", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		s := mocks.NewMockMessageStore(ctrl)
		c := mocks.NewMockPageCache(ctrl)

		c.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))
		s.EXPECT().Page(gomock.Any(), "7", int64(10), 10, store.DirectionForward).Return(&store.Page{Messages: []domain.Message{}}, nil)

		_, err := cache.NewCachedPager(s, c, "", time.Minute).Page(ctx, "7", 10, 10, store.DirectionForward)
		require.NoError(t, err)
	})

	t.Run("should surface store errors", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		s := mocks.NewMockMessageStore(ctrl)
		c := mocks.NewMockPageCache(ctrl)

		c.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, cache.ErrCacheMiss)
		s.EXPECT().Page(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, store.ErrStorage)

		_, err := cache.NewCachedPager(s, c, "", time.Minute).Page(ctx, "7", 10, 10, store.DirectionBackward)
		require.ErrorIs(t, err, store.ErrStorage)
	})
}

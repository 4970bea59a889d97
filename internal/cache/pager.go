package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sasachat/sasachat/internal/store"
	"github.com/sasachat/sasachat/pkg/log"
)

// Pager serves history pages.
type Pager interface {
	Page(ctx context.Context, roomID string, cursor int64, limit int, dir store.Direction) (*store.Page, error)
}

// CachedPager puts a PageCache in front of a store. Only pages that can no
// longer change are cached: backward pages below a cursor and full forward
// pages. The newest page always goes to the store.
type CachedPager struct {
	store  Pager
	cache  PageCache
	prefix string
	ttl    time.Duration
	sf     singleflight.Group
}

func NewCachedPager(s Pager, c PageCache, prefix string, ttl time.Duration) *CachedPager {
	if prefix == "" {
		prefix = "chat:history"
	}
	return &CachedPager{store: s, cache: c, prefix: prefix, ttl: ttl}
}

func (p *CachedPager) Page(ctx context.Context, roomID string, cursor int64, limit int, dir store.Direction) (*store.Page, error) {
	if dir == store.DirectionBackward && cursor == 0 {
		return p.store.Page(ctx, roomID, cursor, limit, dir)
	}

	key := BuildKey(p.prefix, roomID, cursor, dir, limit)
	v, err, _ := p.sf.Do(key, func() (interface{}, error) {
		return p.fetchWithCache(ctx, key, roomID, cursor, limit, dir)
	})
	if err != nil {
		return nil, err
	}

	page, ok := v.(*store.Page)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}
	return page, nil
}

func (p *CachedPager) fetchWithCache(ctx context.Context, key, roomID string, cursor int64, limit int, dir store.Direction) (*store.Page, error) {
	cached, err := p.cache.Get(ctx, key)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str("key", key).Msg("cache get error")
	}

	page, err := p.store.Page(ctx, roomID, cursor, limit, dir)
	if err != nil {
		return nil, err
	}

	// A short forward page grows as messages arrive.
	if dir == store.DirectionForward && !page.HasMore {
		return page, nil
	}

	go func() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := p.cache.Set(cacheCtx, key, page, p.ttl); err != nil {
			l := log.L()
			l.Warn().Err(err).Str("key", key).Msg("cache set error")
		}
	}()

	return page, nil
}

// Invalidate drops the cached pages of a deleted room.
func (p *CachedPager) Invalidate(ctx context.Context, roomID string) error {
	return p.cache.Delete(ctx, roomID)
}

//go:generate go run go.uber.org/mock/mockgen -source=interface.go -destination=../mocks/mock_page_cache.go -package=mocks

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/sasachat/sasachat/internal/store"
)

var ErrCacheMiss = errors.New("cache miss")

// PageCache stores history pages by key.
type PageCache interface {
	Get(ctx context.Context, key string) (*store.Page, error)
	Set(ctx context.Context, key string, page *store.Page, ttl time.Duration) error
	Delete(ctx context.Context, roomID string) error
}

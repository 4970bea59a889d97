package service

import (
	"context"

	"github.com/sasachat/sasachat/internal/cache"
	"github.com/sasachat/sasachat/internal/store"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

type historyService struct {
	pager cache.Pager
}

// NewHistoryService serves pages from pager, which is either the store
// itself or a CachedPager in front of it.
func NewHistoryService(pager cache.Pager) HistoryService {
	return &historyService{pager: pager}
}

func (s *historyService) GetMessages(ctx context.Context, roomID string, cursor int64, limit int, dir store.Direction) (*store.Page, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if cursor < 0 {
		cursor = 0
	}
	return s.pager.Page(ctx, roomID, cursor, limit, dir)
}

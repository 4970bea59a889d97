package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sasachat/sasachat/internal/store"
)

// RedisPageCache keeps pages as JSON strings under
// {prefix}:{roomID}:{cursor}:{direction}:{limit}.
type RedisPageCache struct {
	client *redis.Client
	prefix string
}

func NewRedisPageCache(client *redis.Client, prefix string) *RedisPageCache {
	if prefix == "" {
		prefix = "chat:history"
	}
	return &RedisPageCache{client: client, prefix: prefix}
}

// BuildKey returns the cache key of one page.
func BuildKey(prefix, roomID string, cursor int64, dir store.Direction, limit int) string {
	c := "start"
	if cursor > 0 {
		c = fmt.Sprintf("%d", cursor)
	}
	return fmt.Sprintf("%s:%s:%s:%s:%d", prefix, roomID, c, dir, limit)
}

func (c *RedisPageCache) Key(roomID string, cursor int64, dir store.Direction, limit int) string {
	return BuildKey(c.prefix, roomID, cursor, dir, limit)
}

func (c *RedisPageCache) Get(ctx context.Context, key string) (*store.Page, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var page store.Page
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}
	return &page, nil
}

func (c *RedisPageCache) Set(ctx context.Context, key string, page *store.Page, ttl time.Duration) error {
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

// Delete drops every cached page of a room.
func (c *RedisPageCache) Delete(ctx context.Context, roomID string) error {
	iter := c.client.Scan(ctx, 0, fmt.Sprintf("%s:%s:*", c.prefix, roomID), 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

package feed

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Cache persists the per-source {etag, lastModified} pair conditional
// polling needs, under the feed:cache:{source} key prefix.
type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

type CacheEntry struct {
	ETag         string
	LastModified string
}

func cacheKey(source string) string {
	return fmt.Sprintf("feed:cache:%s", source)
}

func (c *Cache) Get(ctx context.Context, source string) (CacheEntry, error) {
	m, err := c.client.HGetAll(ctx, cacheKey(source)).Result()
	if err != nil {
		return CacheEntry{}, fmt.Errorf("get feed cache: %w", err)
	}
	return CacheEntry{ETag: m["etag"], LastModified: m["last_modified"]}, nil
}

func (c *Cache) Set(ctx context.Context, source string, entry CacheEntry) error {
	return c.client.HSet(ctx, cacheKey(source), "etag", entry.ETag, "last_modified", entry.LastModified).Err()
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GTDGit/gtd_backoffice/internal/models"
)

// DirectoryCache caches tenant directory listings keyed by filter.
type DirectoryCache struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewDirectoryCache creates a new DirectoryCache.
func NewDirectoryCache(redis *RedisClient, ttl time.Duration) *DirectoryCache {
	return &DirectoryCache{redis: redis, ttl: ttl}
}

func (c *DirectoryCache) key(filterKey string) string {
	return fmt.Sprintf("directory:%s", filterKey)
}

// Get returns a cached listing or ErrMiss.
func (c *DirectoryCache) Get(ctx context.Context, filterKey string) ([]models.TenantSummary, error) {
	raw, err := c.redis.Get(ctx, c.key(filterKey))
	if err != nil {
		return nil, err
	}
	var rows []models.TenantSummary
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal directory: %w", err)
	}
	return rows, nil
}

// Set stores a listing.
func (c *DirectoryCache) Set(ctx context.Context, filterKey string, rows []models.TenantSummary) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to marshal directory: %w", err)
	}
	return c.redis.Set(ctx, c.key(filterKey), string(data), c.ttl)
}

// Invalidate drops every cached listing.
func (c *DirectoryCache) Invalidate(ctx context.Context) error {
	return c.redis.DeletePattern(ctx, "directory:*")
}

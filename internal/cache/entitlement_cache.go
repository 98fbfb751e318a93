package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GTDGit/gtd_backoffice/internal/models"
)

// EntitlementCache caches resolved (tenant, module) entitlements.
type EntitlementCache struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewEntitlementCache creates a new EntitlementCache.
func NewEntitlementCache(redis *RedisClient, ttl time.Duration) *EntitlementCache {
	return &EntitlementCache{redis: redis, ttl: ttl}
}

func (c *EntitlementCache) key(tenantID, moduleID string) string {
	return fmt.Sprintf("entitlement:%s:%s", tenantID, moduleID)
}

// Get returns the cached entitlement or ErrMiss.
func (c *EntitlementCache) Get(ctx context.Context, tenantID, moduleID string) (*models.Entitlement, error) {
	raw, err := c.redis.Get(ctx, c.key(tenantID, moduleID))
	if err != nil {
		return nil, err
	}
	var e models.Entitlement
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entitlement: %w", err)
	}
	return &e, nil
}

// Set stores an entitlement.
func (c *EntitlementCache) Set(ctx context.Context, e *models.Entitlement) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entitlement: %w", err)
	}
	return c.redis.Set(ctx, c.key(e.TenantID, e.ModuleID), string(data), c.ttl)
}

// InvalidateTenant drops every cached entitlement of one tenant.
func (c *EntitlementCache) InvalidateTenant(ctx context.Context, tenantID string) error {
	return c.redis.DeletePattern(ctx, fmt.Sprintf("entitlement:%s:*", tenantID))
}

// InvalidateAll drops every cached entitlement; used when plan rules change.
func (c *EntitlementCache) InvalidateAll(ctx context.Context) error {
	return c.redis.DeletePattern(ctx, "entitlement:*")
}

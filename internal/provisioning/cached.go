package provisioning

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bcnelson/l2vpn-manager/internal/cache"
	"github.com/bcnelson/l2vpn-manager/internal/domain"
	"github.com/bcnelson/l2vpn-manager/internal/logger"
)

// Cached decorates a Client so entity and user lookups are served from a
// cache. Circuits and connections always go to the backend since they change
// with every save.
type Cached struct {
	Client
	cache cache.Cache
	ttl   time.Duration
	log   logger.Logger
}

// Ensure Cached implements Client.
var _ Client = (*Cached)(nil)

// NewCached wraps next with c. Cache failures are logged and fall through
// to next.
func NewCached(next Client, c cache.Cache, ttl time.Duration, log logger.Logger) *Cached {
	return &Cached{
		Client: next,
		cache:  c,
		ttl:    ttl,
		log:    log.With(logger.String("component", "directory-cache")),
	}
}

func entitiesKey(workgroupID int, parentID *int) string {
	if parentID == nil {
		return fmt.Sprintf("entities:%d:root", workgroupID)
	}
	return fmt.Sprintf("entities:%d:%d", workgroupID, *parentID)
}

// ListEntities returns the cached entity node when present.
func (c *Cached) ListEntities(ctx context.Context, workgroupID int, parentID *int) (*domain.Entity, error) {
	key := entitiesKey(workgroupID, parentID)
	var entity domain.Entity
	if c.lookup(ctx, key, &entity) {
		return &entity, nil
	}

	e, err := c.Client.ListEntities(ctx, workgroupID, parentID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, e)
	return e, nil
}

// ListUsers returns the cached user list when present.
func (c *Cached) ListUsers(ctx context.Context) ([]*domain.User, error) {
	const key = "users"
	var users []*domain.User
	if c.lookup(ctx, key, &users) {
		return users, nil
	}

	users, err := c.Client.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, users)
	return users, nil
}

// Invalidate drops every cached lookup.
func (c *Cached) Invalidate(ctx context.Context) error {
	return c.cache.Flush(ctx)
}

func (c *Cached) lookup(ctx context.Context, key string, out any) bool {
	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache get failed", logger.String("key", key), logger.Err(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.log.Warn("discarding corrupt cache entry", logger.String("key", key), logger.Err(err))
		return false
	}
	return true
}

func (c *Cached) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		c.log.Warn("cache set failed", logger.String("key", key), logger.Err(err))
	}
}

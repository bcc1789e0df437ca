package engine

import (
	"context"
	"encoding/json"
	"time"

	"granite_crm_backend/internal/workflow/repository"
	"granite_crm_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

const routingCacheKey = "workflow:routing:rules"

// RoutingStore is the settings surface the cache sits in front of.
type RoutingStore interface {
	GetRoutingRules(ctx context.Context) (repository.RoutingRules, error)
	SetRoutingRules(ctx context.Context, rules repository.RoutingRules) error
}

// RoutingCache caches the lead routing rules in Redis. Assignment runs on
// every captured lead, so the settings row is read far more often than it
// changes.
type RoutingCache struct {
	store RoutingStore
	redis *redis.Client
	ttl   time.Duration
	log   *logger.Logger
}

// NewRoutingCache creates a routing cache. rdb may be nil, in which case
// every read goes straight to the store.
func NewRoutingCache(store RoutingStore, rdb *redis.Client, ttl time.Duration, log *logger.Logger) *RoutingCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RoutingCache{store: store, redis: rdb, ttl: ttl, log: log}
}

// Rules returns the current routing rules, from cache when fresh.
func (c *RoutingCache) Rules(ctx context.Context) (repository.RoutingRules, error) {
	if c.redis != nil {
		raw, err := c.redis.Get(ctx, routingCacheKey).Bytes()
		if err == nil {
			var rules repository.RoutingRules
			if err := json.Unmarshal(raw, &rules); err == nil {
				return rules, nil
			}
		} else if err != redis.Nil {
			c.log.Warn("routing cache read failed", "error", err)
		}
	}

	rules, err := c.store.GetRoutingRules(ctx)
	if err != nil {
		return repository.RoutingRules{}, err
	}

	if c.redis != nil {
		if raw, err := json.Marshal(rules); err == nil {
			if err := c.redis.Set(ctx, routingCacheKey, raw, c.ttl).Err(); err != nil {
				c.log.Warn("routing cache write failed", "error", err)
			}
		}
	}

	return rules, nil
}

// Update replaces the routing rules and invalidates the cache.
func (c *RoutingCache) Update(ctx context.Context, rules repository.RoutingRules) error {
	if err := c.store.SetRoutingRules(ctx, rules); err != nil {
		return err
	}
	if c.redis != nil {
		if err := c.redis.Del(ctx, routingCacheKey).Err(); err != nil {
			c.log.Warn("routing cache invalidation failed", "error", err)
		}
	}
	return nil
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	id "candilib/pkg/domain"
)

// ListingCache keeps slot listings in Redis for a short TTL. Each centre has
// a version counter; invalidation bumps the counter so stale entries die
// without key scans. Cache trouble degrades to a database read, never to an
// error.
type ListingCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewListingCache builds the cache. A 30s TTL keeps listings fresh enough
// while absorbing refresh storms when a new planning lands.
func NewListingCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *ListingCache {
	return &ListingCache{client: client, ttl: ttl, logger: logger}
}

func (c *ListingCache) Get(ctx context.Context, centreID id.CentreID, begin, end time.Time) ([]time.Time, bool) {
	key, err := c.dataKey(ctx, centreID, begin, end)
	if err != nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WarnContext(ctx, "listing cache read failed", "error", err)
		}
		return nil, false
	}
	var dates []time.Time
	if err := json.Unmarshal(raw, &dates); err != nil {
		return nil, false
	}
	return dates, true
}

func (c *ListingCache) Set(ctx context.Context, centreID id.CentreID, begin, end time.Time, dates []time.Time) {
	key, err := c.dataKey(ctx, centreID, begin, end)
	if err != nil {
		return
	}
	raw, err := json.Marshal(dates)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "listing cache write failed", "error", err)
	}
}

// Invalidate bumps the centre's version counter, orphaning all cached
// listings for it. The orphans expire on their own TTL.
func (c *ListingCache) Invalidate(ctx context.Context, centreID id.CentreID) {
	if err := c.client.Incr(ctx, versionKey(centreID)).Err(); err != nil {
		c.logger.WarnContext(ctx, "listing cache invalidation failed", "error", err)
	}
}

func (c *ListingCache) dataKey(ctx context.Context, centreID id.CentreID, begin, end time.Time) (string, error) {
	ver, err := c.client.Get(ctx, versionKey(centreID)).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("places:%s:%d:%d:%d", centreID, ver, begin.Unix(), end.Unix()), nil
}

func versionKey(centreID id.CentreID) string {
	return "places:ver:" + centreID.String()
}

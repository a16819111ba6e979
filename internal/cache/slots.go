// Package cache keeps recently computed slot listings in Redis. Entries are
// short-lived and invalidated per owner; the booking write path never reads
// from here.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// SlotsCache stores slot listings under a per-owner generation counter:
// invalidation is a single INCR, which orphans every key written under the
// previous generation and lets TTLs reap them.
type SlotsCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewSlotsCache(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *SlotsCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SlotsCache{rdb: rdb, ttl: ttl, logger: logger}
}

func (c *SlotsCache) Get(ctx context.Context, ownerID, key string) ([]time.Time, bool) {
	gen, err := c.generation(ctx, ownerID)
	if err != nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, c.entryKey(ownerID, gen, key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("slot cache read failed", "err", err)
		}
		return nil, false
	}
	var starts []time.Time
	if err := json.Unmarshal(raw, &starts); err != nil {
		return nil, false
	}
	return starts, true
}

func (c *SlotsCache) Set(ctx context.Context, ownerID, key string, starts []time.Time) {
	gen, err := c.generation(ctx, ownerID)
	if err != nil {
		return
	}
	raw, err := json.Marshal(starts)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.entryKey(ownerID, gen, key), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("slot cache write failed", "err", err)
	}
}

func (c *SlotsCache) InvalidateOwner(ctx context.Context, ownerID string) {
	if err := c.rdb.Incr(ctx, c.genKey(ownerID)).Err(); err != nil {
		c.logger.Warn("slot cache invalidation failed", "owner_id", ownerID, "err", err)
	}
}

func (c *SlotsCache) generation(ctx context.Context, ownerID string) (int64, error) {
	gen, err := c.rdb.Get(ctx, c.genKey(ownerID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

func (c *SlotsCache) genKey(ownerID string) string {
	return "slots:gen:" + ownerID
}

func (c *SlotsCache) entryKey(ownerID string, gen int64, key string) string {
	return "slots:" + ownerID + ":" + strconv.FormatInt(gen, 10) + ":" + key
}

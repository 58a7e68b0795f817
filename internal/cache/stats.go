package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"redas-backend/internal/models"
)

const (
	keyPrefix     = "redas:stats:"
	generationKey = keyPrefix + "gen"
)

// StatsCache caches report statistics per visibility scope. Every report
// write bumps a generation counter, which orphans all cached entries at
// once; orphans expire by TTL.
//
// Failures are logged and treated as misses. A nil *StatsCache is a
// valid no-op cache.
type StatsCache struct {
	kv  KV
	ttl time.Duration
	log *zap.Logger
}

func NewStatsCache(kv KV, ttl time.Duration, log *zap.Logger) *StatsCache {
	return &StatsCache{kv: kv, ttl: ttl, log: log.With(zap.String("component", "stats_cache"))}
}

func (c *StatsCache) key(ctx context.Context, scope string) (string, error) {
	gen, err := c.kv.Get(ctx, generationKey)
	if errors.Is(err, ErrMiss) {
		gen = "0"
	} else if err != nil {
		return "", err
	}
	return keyPrefix + gen + ":" + scope, nil
}

// Slot is the cache entry a lookup resolved to, pinned to the generation
// read at lookup time. Storing into a slot whose generation has since been
// bumped writes an orphan that no later lookup reads.
type Slot struct {
	c   *StatsCache
	key string
}

// Get returns cached statistics for the scope, if any, and the slot a
// freshly computed value should be stored in.
func (c *StatsCache) Get(ctx context.Context, scope string) (*models.ReportStatistics, Slot, bool) {
	if c == nil {
		return nil, Slot{}, false
	}
	key, err := c.key(ctx, scope)
	if err != nil {
		c.log.Warn("stats cache generation read failed", zap.Error(err))
		return nil, Slot{}, false
	}
	slot := Slot{c: c, key: key}
	raw, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.log.Warn("stats cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, slot, false
	}
	var stats models.ReportStatistics
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		c.log.Warn("stats cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, slot, false
	}
	return &stats, slot, true
}

// Set stores statistics under the generation the slot was resolved at.
func (s Slot) Set(ctx context.Context, stats *models.ReportStatistics) {
	if s.c == nil || stats == nil {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.c.kv.Set(ctx, s.key, string(raw), s.c.ttl); err != nil {
		s.c.log.Warn("stats cache write failed", zap.String("key", s.key), zap.Error(err))
	}
}

// Invalidate drops every cached scope.
func (c *StatsCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if _, err := c.kv.Incr(ctx, generationKey); err != nil {
		c.log.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

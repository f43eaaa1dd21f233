package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"TrendScanner/internal/config"
	"TrendScanner/internal/ports"
)

// Tier is one TTL/prefix layer. Tiers are ordered fastest (shortest TTL)
// first and each owns a distinct key namespace via its prefix.
type Tier struct {
	Name   string
	Prefix string
	TTL    time.Duration
}

// TieredCache layers short-TTL tiers in front of long-TTL ones. Reads walk
// tiers fastest to slowest and promote hits forward; a backend outage
// degrades every operation to direct computation, never to a caller-visible
// failure.
type TieredCache struct {
	backend   ports.CacheBackend
	tiers     []Tier
	batchSize int
	pause     time.Duration
	logger    *slog.Logger
}

// New builds the cache from tier configuration, fastest tier first.
func New(backend ports.CacheBackend, cfg config.CacheConfig, logger *slog.Logger) *TieredCache {
	tiers := make([]Tier, 0, len(cfg.Tiers))
	for _, t := range cfg.Tiers {
		tiers = append(tiers, Tier{Name: t.Name, Prefix: t.Prefix, TTL: t.TTL.Duration})
	}
	return &TieredCache{
		backend:   backend,
		tiers:     tiers,
		batchSize: cfg.InvalidateBatchSize,
		pause:     cfg.InvalidatePause.Duration,
		logger:    logger,
	}
}

// TierTTL reports the TTL of a named tier, or an error for unknown names.
func (c *TieredCache) TierTTL(name string) (time.Duration, error) {
	idx, err := c.tierIndex(name)
	if err != nil {
		return 0, err
	}
	return c.tiers[idx].TTL, nil
}

// GetOrCompute serves key from the fastest tier that holds it, up to and
// including the named tier. A hit in a slower tier is promoted into all
// faster tiers first. On a full miss, compute runs exactly once and the value
// is written to the named tier and everything faster. Backend errors fall
// back to compute; compute errors propagate and nothing is cached.
func (c *TieredCache) GetOrCompute(ctx context.Context, key, tier string, compute func(context.Context) ([]byte, error)) ([]byte, error) {
	limit, err := c.tierIndex(tier)
	if err != nil {
		return nil, err
	}

	for i := 0; i <= limit; i++ {
		value, ok, err := c.backend.Get(ctx, c.tiers[i].Prefix+":"+key)
		if err != nil {
			c.warn("cache read failed", "tier", c.tiers[i].Name, "key", key, "error", err)
			continue
		}
		if !ok {
			continue
		}
		c.fill(ctx, key, value, i-1)
		return value, nil
	}

	value, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, key, value, limit)
	return value, nil
}

// Get reads key from the fastest tier that holds it, up to and including the
// named tier, promoting slow hits forward. It never computes; absence and
// backend failure both report ok=false.
func (c *TieredCache) Get(ctx context.Context, key, tier string) ([]byte, bool) {
	limit, err := c.tierIndex(tier)
	if err != nil {
		c.warn("cache read failed", "key", key, "error", err)
		return nil, false
	}
	for i := 0; i <= limit; i++ {
		value, ok, err := c.backend.Get(ctx, c.tiers[i].Prefix+":"+key)
		if err != nil {
			c.warn("cache read failed", "tier", c.tiers[i].Name, "key", key, "error", err)
			continue
		}
		if !ok {
			continue
		}
		c.fill(ctx, key, value, i-1)
		return value, true
	}
	return nil, false
}

// Put writes value into the named tier and all faster tiers, each with its
// own TTL. Write failures are logged and swallowed: a computed value stays
// usable even when it could not be cached.
func (c *TieredCache) Put(ctx context.Context, key, tier string, value []byte) error {
	limit, err := c.tierIndex(tier)
	if err != nil {
		return err
	}
	c.fill(ctx, key, value, limit)
	return nil
}

// InvalidatePattern deletes every key matching the glob pattern across all
// tiers, in small batches with a pause in between so bulk invalidation does
// not monopolize the shared backend. Returns the count actually removed,
// best-effort on an eventually-consistent backend.
func (c *TieredCache) InvalidatePattern(ctx context.Context, pattern string) int {
	var removed int
	for _, tier := range c.tiers {
		keys, err := c.backend.Keys(ctx, tier.Prefix+":"+pattern)
		if err != nil {
			c.warn("cache key scan failed", "tier", tier.Name, "pattern", pattern, "error", err)
			continue
		}
		for start := 0; start < len(keys); start += c.batchSize {
			end := start + c.batchSize
			if end > len(keys) {
				end = len(keys)
			}
			n, err := c.backend.Delete(ctx, keys[start:end]...)
			if err != nil {
				c.warn("cache delete failed", "tier", tier.Name, "error", err)
				continue
			}
			removed += n
			if end < len(keys) && c.pause > 0 {
				select {
				case <-time.After(c.pause):
				case <-ctx.Done():
					return removed
				}
			}
		}
	}
	return removed
}

// AcquireLease claims a short-lived advisory marker. It reports false when
// another holder already owns the lease or when the backend is unavailable
// (the caller must treat a failed acquire as "proceed without exclusivity").
func (c *TieredCache) AcquireLease(ctx context.Context, key string, ttl time.Duration) bool {
	ok, err := c.backend.SetIfAbsent(ctx, "lease:"+key, []byte("1"), ttl)
	if err != nil {
		c.warn("lease acquire failed", "key", key, "error", err)
		return false
	}
	return ok
}

// ReleaseLease drops the advisory marker; expiry covers a missed release.
func (c *TieredCache) ReleaseLease(ctx context.Context, key string) {
	if _, err := c.backend.Delete(ctx, "lease:"+key); err != nil {
		c.warn("lease release failed", "key", key, "error", err)
	}
}

// fill writes value into tiers[0..limit], each with its own TTL.
func (c *TieredCache) fill(ctx context.Context, key string, value []byte, limit int) {
	for i := 0; i <= limit; i++ {
		if err := c.backend.Set(ctx, c.tiers[i].Prefix+":"+key, value, c.tiers[i].TTL); err != nil {
			c.warn("cache write failed", "tier", c.tiers[i].Name, "key", key, "error", err)
		}
	}
}

func (c *TieredCache) tierIndex(name string) (int, error) {
	for i, tier := range c.tiers {
		if tier.Name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown cache tier %q", name)
}

func (c *TieredCache) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

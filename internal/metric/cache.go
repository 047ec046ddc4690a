package metric

import (
	"context"
	"strings"
	"time"

	"rosterd/internal/ports"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type cached struct {
	value string
	err   error
}

// Cached fronts a MetricProvider with a size bounded, time limited cache. A pass
// resolves the same keys for every entity several times (ordering, decoration,
// identity labels); the cache keeps that to one provider call per TTL.
type Cached struct {
	src ports.MetricProvider
	lru *expirable.LRU[string, cached]
}

// NewCached wraps src. A non-positive ttl disables caching.
func NewCached(src ports.MetricProvider, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = 4096
	}
	c := &Cached{src: src}
	if ttl > 0 {
		c.lru = expirable.NewLRU[string, cached](size, nil, ttl)
	}
	return c
}

func cacheKey(entityID, key string) string {
	return entityID + "\x00" + key
}

// Resolve implements ports.MetricProvider.
func (c *Cached) Resolve(ctx context.Context, entityID, key string) (string, error) {
	if c.lru == nil {
		return c.src.Resolve(ctx, entityID, key)
	}
	k := cacheKey(entityID, key)
	if hit, ok := c.lru.Get(k); ok {
		return hit.value, hit.err
	}
	v, err := ResolveErr(ctx, c.src, entityID, key)
	c.lru.Add(k, cached{value: v, err: err})
	return v, err
}

// Forget drops every cached value of one entity (disconnect path).
func (c *Cached) Forget(entityID string) {
	if c.lru == nil {
		return
	}
	prefix := entityID + "\x00"
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.lru.Remove(k)
		}
	}
}

// Count returns the number of cached values of one entity.
func (c *Cached) Count(entityID string) int {
	if c.lru == nil {
		return 0
	}
	prefix := entityID + "\x00"
	n := 0
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n
}

// Purge empties the cache (config reload).
func (c *Cached) Purge() {
	if c.lru != nil {
		c.lru.Purge()
	}
}

// Len returns the number of cached entries.
func (c *Cached) Len() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}

var _ ports.MetricProvider = (*Cached)(nil)

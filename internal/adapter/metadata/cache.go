package metadata

import (
	"context"
	"time"

	"github.com/couchcryptid/forecast-hub-etl/internal/cache"
	"github.com/couchcryptid/forecast-hub-etl/internal/domain"
	"github.com/couchcryptid/forecast-hub-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// CachedProvider wraps a MetadataProvider and keeps each canonical set for ttl.
type CachedProvider struct {
	inner     domain.MetadataProvider
	metrics   *observability.Metrics
	models    *cache.LRU[[]string]
	locations *cache.LRU[[]domain.LocationAttributes]
	targets   *cache.LRU[[]string]
}

// NewCachedProvider creates a cache decorator around a provider. A nil clock
// uses real time.
func NewCachedProvider(inner domain.MetadataProvider, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedProvider {
	return &CachedProvider{
		inner:     inner,
		metrics:   metrics,
		models:    cache.New[[]string](1, ttl, clock),
		locations: cache.New[[]domain.LocationAttributes](1, ttl, clock),
		targets:   cache.New[[]string](1, ttl, clock),
	}
}

func (c *CachedProvider) Models(ctx context.Context) ([]string, error) {
	return cached(ctx, c, "models", c.models, c.inner.Models)
}

func (c *CachedProvider) Locations(ctx context.Context) ([]domain.LocationAttributes, error) {
	return cached(ctx, c, "locations", c.locations, c.inner.Locations)
}

func (c *CachedProvider) Targets(ctx context.Context) ([]string, error) {
	return cached(ctx, c, "targets", c.targets, c.inner.Targets)
}

func cached[V any](ctx context.Context, c *CachedProvider, kind string, lru *cache.LRU[[]V], fetch func(context.Context) ([]V, error)) ([]V, error) {
	if v, ok := lru.Get(kind); ok {
		c.metrics.MetadataCache.WithLabelValues(kind, "hit").Inc()
		return v, nil
	}
	c.metrics.MetadataCache.WithLabelValues(kind, "miss").Inc()
	v, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty sets so a transiently empty response can be retried.
	if len(v) > 0 {
		lru.Put(kind, v)
	}
	return v, nil
}

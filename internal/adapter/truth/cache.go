package truth

import (
	"context"
	"time"

	"github.com/couchcryptid/forecast-hub-etl/internal/cache"
	"github.com/couchcryptid/forecast-hub-etl/internal/domain"
	"github.com/couchcryptid/forecast-hub-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

const maxCachedTables = 16

// CachedSource keeps recently read truth tables for ttl.
type CachedSource struct {
	inner   domain.TruthProvider
	tables  *cache.LRU[[]domain.TruthRecord]
	metrics *observability.Metrics
}

// NewCachedSource wraps inner. A nil clock uses real time.
func NewCachedSource(inner domain.TruthProvider, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		inner:   inner,
		tables:  cache.New[[]domain.TruthRecord](maxCachedTables, ttl, clock),
		metrics: metrics,
	}
}

// Truth implements domain.TruthProvider.
func (c *CachedSource) Truth(ctx context.Context, source domain.TruthSource, target domain.TargetVariable) ([]domain.TruthRecord, error) {
	key := string(source) + "|" + string(target)
	if records, ok := c.tables.Get(key); ok {
		c.metrics.TruthCache.WithLabelValues("hit").Inc()
		return records, nil
	}
	c.metrics.TruthCache.WithLabelValues("miss").Inc()

	records, err := c.inner.Truth(ctx, source, target)
	if err != nil {
		return nil, err
	}
	c.tables.Put(key, records)
	return records, nil
}

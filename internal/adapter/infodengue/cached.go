package infodengue

import (
	"context"
	"time"

	"github.com/couchcryptid/arbovirus-dashboard/internal/cache"
	"github.com/couchcryptid/arbovirus-dashboard/internal/domain"
	"github.com/couchcryptid/arbovirus-dashboard/internal/observability"
)

// CachedSource wraps a domain.EpiSource with a TTL cache keyed by endpoint
// and query parameters. Concurrent misses for the same key share one
// upstream fetch. Failures are not cached.
//
// Returned slices are shared between callers and must not be modified.
type CachedSource struct {
	source  domain.EpiSource
	cache   *cache.Cache[[]domain.RawRecord]
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCachedSource creates a caching decorator around source.
func NewCachedSource(source domain.EpiSource, c *cache.Cache[[]domain.RawRecord], ttl time.Duration, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		source:  source,
		cache:   c,
		ttl:     ttl,
		metrics: metrics,
	}
}

// FetchState returns cached bulk rows or fetches them.
func (s *CachedSource) FetchState(ctx context.Context, q domain.StateQuery) ([]domain.RawRecord, error) {
	key := endpointBulk + "?" + stateParams(q).Encode()
	rows, hit, err := s.cache.GetOrLoad(ctx, key, s.ttl, func(ctx context.Context) ([]domain.RawRecord, error) {
		return s.source.FetchState(ctx, q)
	})
	s.recordLookup(hit)
	return rows, err
}

// FetchMunicipality returns cached municipality rows or fetches them.
func (s *CachedSource) FetchMunicipality(ctx context.Context, q domain.MunicipalityQuery) ([]domain.RawRecord, error) {
	key := endpointSingle + "?" + municipalityParams(q).Encode()
	rows, hit, err := s.cache.GetOrLoad(ctx, key, s.ttl, func(ctx context.Context) ([]domain.RawRecord, error) {
		return s.source.FetchMunicipality(ctx, q)
	})
	s.recordLookup(hit)
	return rows, err
}

func (s *CachedSource) recordLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	s.metrics.CacheLookups.WithLabelValues("epi", result).Inc()
}

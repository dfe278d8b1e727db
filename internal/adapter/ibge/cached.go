package ibge

import (
	"context"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/arbovirus-dashboard/internal/cache"
	"github.com/couchcryptid/arbovirus-dashboard/internal/domain"
	"github.com/couchcryptid/arbovirus-dashboard/internal/observability"
)

// CachedMesh wraps a domain.GeoSource with a per-state TTL cache. Meshes
// change rarely, so the TTL is typically a day.
type CachedMesh struct {
	source  domain.GeoSource
	cache   *cache.Cache[*geojson.FeatureCollection]
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCachedMesh creates a caching decorator around source.
func NewCachedMesh(source domain.GeoSource, c *cache.Cache[*geojson.FeatureCollection], ttl time.Duration, metrics *observability.Metrics) *CachedMesh {
	return &CachedMesh{
		source:  source,
		cache:   c,
		ttl:     ttl,
		metrics: metrics,
	}
}

// MunicipalityMesh returns the cached mesh for uf or fetches it.
func (m *CachedMesh) MunicipalityMesh(ctx context.Context, uf string) (*geojson.FeatureCollection, error) {
	key := endpointMesh + "/" + strings.ToUpper(uf)
	fc, hit, err := m.cache.GetOrLoad(ctx, key, m.ttl, func(ctx context.Context) (*geojson.FeatureCollection, error) {
		return m.source.MunicipalityMesh(ctx, uf)
	})

	result := "miss"
	if hit {
		result = "hit"
	}
	m.metrics.CacheLookups.WithLabelValues("geo", result).Inc()
	return fc, err
}

// Package ibge fetches municipality boundary meshes from the IBGE
// geographic API as GeoJSON.
package ibge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/arbovirus-dashboard/internal/observability"
)

// ErrFetchFailed marks a transport failure, non-2xx response, or an
// undecodable mesh.
var ErrFetchFailed = errors.New("ibge mesh fetch failed")

const endpointMesh = "mesh"

// Client implements domain.GeoSource using the IBGE mesh API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an IBGE mesh client. baseURL is the states mesh
// collection, e.g. https://servicodados.ibge.gov.br/api/v3/malhas/estados.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		metrics:    metrics,
		logger:     logger,
	}
}

// MunicipalityMesh returns one feature per municipality of the state, at
// minimal resolution.
func (c *Client) MunicipalityMesh(ctx context.Context, uf string) (*geojson.FeatureCollection, error) {
	params := url.Values{
		"formato":      {"application/vnd.geo+json"},
		"intrarregiao": {"municipio"},
		"qualidade":    {"minima"},
	}
	u := fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(uf), params.Encode())

	start := time.Now()
	fc, err := c.doRequest(ctx, u)
	c.metrics.UpstreamDuration.WithLabelValues(endpointMesh).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues(endpointMesh, "error").Inc()
		return nil, fmt.Errorf("mesh %s: %w", uf, err)
	}
	c.metrics.UpstreamRequests.WithLabelValues(endpointMesh, "success").Inc()

	c.logger.Debug("mesh fetched", "uf", uf, "features", len(fc.Features))
	return fc, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (*geojson.FeatureCollection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrFetchFailed, resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrFetchFailed, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode mesh: %w", ErrFetchFailed, err)
	}
	return fc, nil
}

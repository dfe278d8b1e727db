// Package infodengue fetches arbovirus surveillance rows from the Mosqlimate
// bulk datastore and the InfoDengue single-municipality alert API.
package infodengue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/arbovirus-dashboard/internal/domain"
	"github.com/couchcryptid/arbovirus-dashboard/internal/observability"
)

// ErrFetchFailed marks a transport failure or non-2xx response. Any rows
// already received for the same query are discarded.
var ErrFetchFailed = errors.New("infodengue fetch failed")

const (
	endpointBulk   = "bulk"
	endpointSingle = "single"

	dateLayout = "2006-01-02"

	// maxPages bounds total_pages when no page cap is configured. A state
	// year at 100 rows per page is a few hundred pages.
	maxPages = 10000
)

// Options configures a Client.
type Options struct {
	BulkURL       string
	SingleURL     string
	BulkTimeout   time.Duration
	SingleTimeout time.Duration

	PerPage int
	// PageCap bounds how many bulk pages are followed. 0 means every page.
	PageCap int
	// PageWorkers bounds concurrent requests for pages 2..N.
	PageWorkers int
}

// Client implements domain.EpiSource over HTTP.
type Client struct {
	bulkClient   *http.Client
	singleClient *http.Client
	bulkURL      string
	singleURL    string
	perPage      int
	pageCap      int
	workers      int
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// NewClient creates an InfoDengue client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	workers := opts.PageWorkers
	if workers < 1 {
		workers = 1
	}
	perPage := opts.PerPage
	if perPage < 1 {
		perPage = 100
	}
	return &Client{
		bulkClient:   &http.Client{Timeout: opts.BulkTimeout},
		singleClient: &http.Client{Timeout: opts.SingleTimeout},
		bulkURL:      opts.BulkURL,
		singleURL:    opts.SingleURL,
		perPage:      perPage,
		pageCap:      opts.PageCap,
		workers:      workers,
		metrics:      metrics,
		logger:       logger,
	}
}

// FetchState reads page 1 of the bulk endpoint, then pages 2..min(total_pages, cap)
// concurrently, and returns all items in page order.
func (c *Client) FetchState(ctx context.Context, q domain.StateQuery) ([]domain.RawRecord, error) {
	params := stateParams(q)
	params.Set("per_page", strconv.Itoa(c.perPage))

	first, err := c.fetchPage(ctx, params, 1)
	if err != nil {
		return nil, err
	}

	last := first.totalPages
	if c.pageCap == 0 && last > maxPages {
		return nil, fmt.Errorf("%w: upstream reports %d pages, limit is %d", ErrFetchFailed, last, maxPages)
	}
	if c.pageCap > 0 && last > c.pageCap {
		c.logger.Debug("bulk pagination truncated",
			"total_pages", first.totalPages,
			"page_cap", c.pageCap,
			"uf", q.UF,
			"disease", q.Disease,
		)
		last = c.pageCap
	}

	pages := make([][]domain.RawRecord, last)
	pages[0] = first.items

	if last > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.workers)
		for n := 2; n <= last; n++ {
			g.Go(func() error {
				p, err := c.fetchPage(gctx, params, n)
				if err != nil {
					return err
				}
				pages[n-1] = p.items
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var rows []domain.RawRecord
	for _, items := range pages {
		rows = append(rows, items...)
	}

	c.metrics.BulkPages.Observe(float64(last))
	c.logger.Debug("bulk fetch complete", "uf", q.UF, "disease", q.Disease, "pages", last, "rows", len(rows))
	return rows, nil
}

// FetchMunicipality queries the single-municipality endpoint, which answers
// with either a list or a single object.
func (c *Client) FetchMunicipality(ctx context.Context, q domain.MunicipalityQuery) ([]domain.RawRecord, error) {
	body, err := c.get(ctx, c.singleClient, endpointSingle, c.singleURL+"?"+municipalityParams(q).Encode())
	if err != nil {
		return nil, fmt.Errorf("geocode %s: %w", q.Geocode, err)
	}
	rows := domain.Normalize(body)
	c.logger.Debug("municipality fetch complete", "geocode", q.Geocode, "disease", q.Disease, "rows", len(rows))
	return rows, nil
}

type page struct {
	items      []domain.RawRecord
	totalPages int
}

func (c *Client) fetchPage(ctx context.Context, params url.Values, n int) (page, error) {
	values := maps.Clone(params)
	values.Set("page", strconv.Itoa(n))

	body, err := c.get(ctx, c.bulkClient, endpointBulk, c.bulkURL+"?"+values.Encode())
	if err != nil {
		return page{}, fmt.Errorf("page %d: %w", n, err)
	}
	return decodePage(body), nil
}

func (c *Client) get(ctx context.Context, client *http.Client, endpoint, fullURL string) ([]byte, error) {
	start := time.Now()
	body, err := c.doRequest(ctx, client, fullURL)
	c.metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, err
	}
	c.metrics.UpstreamRequests.WithLabelValues(endpoint, "success").Inc()
	return body, nil
}

func (c *Client) doRequest(ctx context.Context, client *http.Client, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrFetchFailed, resp.StatusCode, snippet)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrFetchFailed, err)
	}
	return body, nil
}

// envelope is the bulk endpoint's paginated response.
type envelope struct {
	Items      json.RawMessage `json:"items"`
	Pagination struct {
		TotalPages int `json:"total_pages"`
	} `json:"pagination"`
}

// DecodeBulkPage decodes one recorded bulk response body into its rows and
// the total page count it advertises.
func DecodeBulkPage(body []byte) ([]domain.RawRecord, int) {
	p := decodePage(body)
	return p.items, p.totalPages
}

// decodePage accepts the paginated envelope or a bare array. Any other
// shape, including malformed JSON, is an empty single page.
func decodePage(body []byte) page {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return page{totalPages: 1}
	}

	switch body[0] {
	case '[':
		return page{items: domain.Normalize(body), totalPages: 1}
	case '{':
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return page{totalPages: 1}
		}
		p := page{items: domain.Normalize(env.Items), totalPages: env.Pagination.TotalPages}
		if p.totalPages < 1 {
			p.totalPages = 1
		}
		return p
	}
	return page{totalPages: 1}
}

func stateParams(q domain.StateQuery) url.Values {
	return url.Values{
		"disease": {string(q.Disease)},
		"start":   {q.Start.Format(dateLayout)},
		"end":     {q.End.Format(dateLayout)},
		"uf":      {q.UF},
	}
}

func municipalityParams(q domain.MunicipalityQuery) url.Values {
	return url.Values{
		"geocode":  {q.Geocode},
		"disease":  {string(q.Disease)},
		"format":   {"json"},
		"ew_start": {strconv.Itoa(q.EWStart)},
		"ew_end":   {strconv.Itoa(q.EWEnd)},
		"ey_start": {strconv.Itoa(q.EYStart)},
		"ey_end":   {strconv.Itoa(q.EYEnd)},
	}
}

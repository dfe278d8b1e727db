package infodengue

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/arbovirus-dashboard/internal/domain"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions(baseURL string) Options {
	return Options{
		BulkURL:       baseURL + "/bulk/",
		SingleURL:     baseURL + "/alertcity",
		BulkTimeout:   5 * time.Second,
		SingleTimeout: 5 * time.Second,
		PerPage:       100,
		PageCap:       5,
		PageWorkers:   2,
	}
}

func testStateQuery() domain.StateQuery {
	return domain.StateQuery{
		UF:      "GO",
		Disease: domain.Dengue,
		Start:   time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		End:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return data
}

// pagedServer answers every bulk page with one item tagged by its page
// number, reporting totalPages. failPage, when non-zero, returns 500.
type pagedServer struct {
	totalPages int
	failPage   int

	mu    sync.Mutex
	pages []int
}

func (s *pagedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(r.URL.Query().Get("page"))
	s.mu.Lock()
	s.pages = append(s.pages, n)
	s.mu.Unlock()

	if n == s.failPage {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
		return
	}
	w.Header().Set(headerContentType, contentTypeJSON)
	fmt.Fprintf(w, `{"items":[{"geocode":"5208707","SE":%d}],"pagination":{"total_pages":%d}}`, 202400+n, s.totalPages)
}

func (s *pagedServer) requested() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.pages...)
}

func epiWeeks(t *testing.T, rows []domain.RawRecord) []int {
	t.Helper()
	weeks := make([]int, 0, len(rows))
	for _, r := range rows {
		weeks = append(weeks, domain.ParseRecord(r).EpiWeek)
	}
	return weeks
}

func TestClient_FetchState_SinglePageScenario(t *testing.T) {
	fixture := readFixture(t, "bulk_single_page.json")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bulk/", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("page"))
		assert.Equal(t, "100", q.Get("per_page"))
		assert.Equal(t, "dengue", q.Get("disease"))
		assert.Equal(t, "2023-01-01", q.Get("start"))
		assert.Equal(t, "2024-01-01", q.Get("end"))
		assert.Equal(t, "GO", q.Get("uf"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write(fixture)
	}))
	defer srv.Close()

	c := NewClient(testOptions(srv.URL), testMetrics(), discardLogger())
	rows, err := c.FetchState(context.Background(), testStateQuery())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	records := domain.Process(domain.ParseRecords(rows))
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "3301500", rec.MunicipalityCode)
	assert.Equal(t, domain.AlertYellow, rec.AlertLevel)
	assert.Equal(t, "Yellow", rec.AlertLevel.Name())
	assert.Equal(t, "#f39c12", rec.AlertLevel.Color())
	assert.Equal(t, 10.0, rec.CasesReported.OrZero())
	assert.Equal(t, 12.0, rec.CasesEstimated.OrZero())
}

func TestClient_FetchState_PageCap(t *testing.T) {
	upstream := &pagedServer{totalPages: 8}
	srv := httptest.NewServer(upstream)
	defer srv.Close()

	c := NewClient(testOptions(srv.URL), testMetrics(), discardLogger())
	rows, err := c.FetchState(context.Background(), testStateQuery())
	require.NoError(t, err)

	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, upstream.requested())
	assert.Equal(t, []int{202401, 202402, 202403, 202404, 202405}, epiWeeks(t, rows), "rows keep page order")
}

func TestClient_FetchState_Unbounded(t *testing.T) {
	upstream := &pagedServer{totalPages: 8}
	srv := httptest.NewServer(upstream)
	defer srv.Close()

	opts := testOptions(srv.URL)
	opts.PageCap = 0
	opts.PageWorkers = 3
	c := NewClient(opts, testMetrics(), discardLogger())

	rows, err := c.FetchState(context.Background(), testStateQuery())
	require.NoError(t, err)

	assert.Len(t, upstream.requested(), 8)
	assert.Equal(t, []int{202401, 202402, 202403, 202404, 202405, 202406, 202407, 202408}, epiWeeks(t, rows))
}

func TestClient_FetchState_ImplausiblePageCount(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"items":[],"pagination":{"total_pages":9223372036854775807}}`)
	}))
	defer srv.Close()

	opts := testOptions(srv.URL)
	opts.PageCap = 0
	c := NewClient(opts, testMetrics(), discardLogger())

	rows, err := c.FetchState(context.Background(), testStateQuery())
	require.ErrorIs(t, err, ErrFetchFailed)
	assert.Contains(t, err.Error(), "9223372036854775807 pages")
	assert.Empty(t, rows)
	assert.Equal(t, int32(1), calls.Load(), "only page 1 is requested")
}

func TestClient_FetchState_PageCapTruncatesImplausiblePageCount(t *testing.T) {
	upstream := &pagedServer{totalPages: math.MaxInt}
	srv := httptest.NewServer(upstream)
	defer srv.Close()

	c := NewClient(testOptions(srv.URL), testMetrics(), discardLogger())
	rows, err := c.FetchState(context.Background(), testStateQuery())
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestClient_FetchState_PageFailureDiscardsPartialResults(t *testing.T) {
	upstream := &pagedServer{totalPages: 4, failPage: 3}
	srv := httptest.NewServer(upstream)
	defer srv.Close()

	m := testMetrics()
	c := NewClient(testOptions(srv.URL), m, discardLogger())
	rows, err := c.FetchState(context.Background(), testStateQuery())

	require.ErrorIs(t, err, ErrFetchFailed)
	assert.Contains(t, err.Error(), "page 3")
	assert.Contains(t, err.Error(), "status 500")
	assert.Empty(t, rows)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues(endpointBulk, "error")), 1.0)
}

func TestClient_FetchState_FirstPageFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(testOptions(srv.URL), testMetrics(), discardLogger())
	rows, err := c.FetchState(context.Background(), testStateQuery())

	require.ErrorIs(t, err, ErrFetchFailed)
	assert.Empty(t, rows)
}

func TestClient_FetchState_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	opts := testOptions(srv.URL)
	opts.BulkTimeout = 50 * time.Millisecond
	c := NewClient(opts, testMetrics(), discardLogger())

	rows, err := c.FetchState(context.Background(), testStateQuery())
	require.ErrorIs(t, err, ErrFetchFailed)
	assert.Empty(t, rows)
}

func TestClient_FetchState_BodyShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bare array", `[{"geocode":"5208707"},{"geocode":"5201405"}]`, 2},
		{"envelope without items", `{"pagination":{"total_pages":1}}`, 0},
		{"envelope with null items", `{"items":null}`, 0},
		{"malformed json", `{"items":[{"geocode"`, 0},
		{"scalar", `"nope"`, 0},
		{"empty body", ``, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewClient(testOptions(srv.URL), testMetrics(), discardLogger())
			rows, err := c.FetchState(context.Background(), testStateQuery())
			require.NoError(t, err, "malformed shapes are empty, not errors")
			assert.Len(t, rows, tt.want)
		})
	}
}

func TestDecodeBulkPage(t *testing.T) {
	rows, total := DecodeBulkPage(readFixture(t, "bulk_single_page.json"))
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, total)

	rows, total = DecodeBulkPage([]byte(`{"items":[{"geocode":"5208707"}],"pagination":{"total_pages":7}}`))
	assert.Len(t, rows, 1)
	assert.Equal(t, 7, total)

	rows, total = DecodeBulkPage([]byte(`{"items":[],"pagination":{"total_pages":0}}`))
	assert.Empty(t, rows)
	assert.Equal(t, 1, total, "page count never drops below one")
}

func TestClient_FetchMunicipality_List(t *testing.T) {
	fixture := readFixture(t, "alertcity_goiania.json")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/alertcity", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "5208707", q.Get("geocode"))
		assert.Equal(t, "zika", q.Get("disease"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "1", q.Get("ew_start"))
		assert.Equal(t, "53", q.Get("ew_end"))
		assert.Equal(t, "2023", q.Get("ey_start"))
		assert.Equal(t, "2024", q.Get("ey_end"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write(fixture)
	}))
	defer srv.Close()

	c := NewClient(testOptions(srv.URL), testMetrics(), discardLogger())
	rows, err := c.FetchMunicipality(context.Background(), domain.MunicipalityQuery{
		Geocode: "5208707",
		Disease: domain.Zika,
		EWStart: 1,
		EWEnd:   53,
		EYStart: 2023,
		EYEnd:   2024,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	records := domain.Process(domain.ParseRecords(rows))
	require.Len(t, records, 2)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), records[0].WeekStart)
	assert.Equal(t, domain.AlertOrange, records[0].AlertLevel)
	assert.Equal(t, domain.AlertRed, records[1].AlertLevel)
	assert.False(t, records[0].ConfirmedCases.Valid, "null stays missing")
}

func TestClient_FetchMunicipality_SingleObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"data_iniSE":"2024-01-07","casos":3,"nivel":1}`)
	}))
	defer srv.Close()

	c := NewClient(testOptions(srv.URL), testMetrics(), discardLogger())
	rows, err := c.FetchMunicipality(context.Background(), domain.MunicipalityQuery{Geocode: "5201108", Disease: domain.Dengue})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestClient_FetchMunicipality_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	opts := testOptions(srv.URL)
	opts.SingleTimeout = 50 * time.Millisecond
	m := testMetrics()
	c := NewClient(opts, m, discardLogger())

	rows, err := c.FetchMunicipality(context.Background(), domain.MunicipalityQuery{Geocode: "5201108", Disease: domain.Dengue})
	require.ErrorIs(t, err, ErrFetchFailed)
	assert.Contains(t, err.Error(), "5201108")
	assert.Empty(t, rows)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues(endpointSingle, "error")))
}

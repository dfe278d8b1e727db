package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the dashboard service.
type Metrics struct {
	// Upstream API metrics.
	UpstreamRequests *prometheus.CounterVec   // labels: endpoint={bulk,single,mesh}, outcome={success,error}
	UpstreamDuration *prometheus.HistogramVec // labels: endpoint={bulk,single,mesh}
	BulkPages        prometheus.Histogram

	// Cache metrics.
	CacheLookups *prometheus.CounterVec // labels: cache={epi,geo}, result={hit,miss}

	// Dashboard metrics.
	ViewsServed        *prometheus.CounterVec // labels: view={state,municipality}, status={ok,no_data,fetch_failed}
	SnapshotsPublished prometheus.Counter
	PipelineReady      prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbo_dashboard",
			Name:      "upstream_requests_total",
			Help:      "Upstream API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "arbo_dashboard",
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		BulkPages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "arbo_dashboard",
			Name:      "bulk_pages",
			Help:      "Number of pages fetched per bulk regional query.",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50},
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbo_dashboard",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		ViewsServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbo_dashboard",
			Name:      "views_served_total",
			Help:      "Dashboard views built by view type and status.",
		}, []string{"view", "status"}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbo_dashboard",
			Name:      "snapshots_published_total",
			Help:      "Municipality alert snapshots published to Kafka.",
		}),
		PipelineReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "arbo_dashboard",
			Name:      "pipeline_ready",
			Help:      "1 once the startup dataset has loaded, 0 before.",
		}),
	}

	prometheus.MustRegister(
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.BulkPages,
		m.CacheLookups,
		m.ViewsServed,
		m.SnapshotsPublished,
		m.PipelineReady,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		UpstreamRequests:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "arbo_dashboard", Name: "upstream_requests_total"}, []string{"endpoint", "outcome"}),
		UpstreamDuration:   prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "arbo_dashboard", Name: "upstream_request_duration_seconds"}, []string{"endpoint"}),
		BulkPages:          prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "arbo_dashboard", Name: "bulk_pages"}),
		CacheLookups:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "arbo_dashboard", Name: "cache_lookups_total"}, []string{"cache", "result"}),
		ViewsServed:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "arbo_dashboard", Name: "views_served_total"}, []string{"view", "status"}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "arbo_dashboard", Name: "snapshots_published_total"}),
		PipelineReady:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "arbo_dashboard", Name: "pipeline_ready"}),
	}
}

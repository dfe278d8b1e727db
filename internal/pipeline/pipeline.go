package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/arbovirus-dashboard/internal/domain"
	"github.com/couchcryptid/arbovirus-dashboard/internal/observability"
)

// SnapshotPublisher receives the latest-per-municipality snapshot of a state
// view whenever a newer epidemiological week appears.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, disease domain.Disease, uf string, s domain.Snapshot) error
}

// Options configures a Pipeline.
type Options struct {
	// StateCode is the two-letter state the state view covers.
	StateCode string
	// Lookback is the bulk query window ending today. Defaults to 365 days.
	Lookback time.Duration
	// Clock drives query windows. Defaults to the real clock.
	Clock clockwork.Clock
	// Publisher is optional.
	Publisher SnapshotPublisher
}

// Pipeline builds dashboards: fetch → normalize → process → aggregate →
// chart. Upstream failures degrade into a status and warnings rather than
// errors.
type Pipeline struct {
	epi       domain.EpiSource
	geo       domain.GeoSource
	publisher SnapshotPublisher
	published *publishGate
	clock     clockwork.Clock
	stateCode string
	lookback  time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New creates a Pipeline over the given sources. geo may be nil, in which
// case state views carry no map.
func New(epi domain.EpiSource, geo domain.GeoSource, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 365 * 24 * time.Hour
	}
	if opts.StateCode == "" {
		opts.StateCode = "GO"
	}
	return &Pipeline{
		epi:       epi,
		geo:       geo,
		publisher: opts.Publisher,
		published: newPublishGate(),
		clock:     opts.Clock,
		stateCode: strings.ToUpper(opts.StateCode),
		lookback:  opts.Lookback,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once a state dataset has loaded, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("surveillance data has not loaded yet")
	}
	return nil
}

// Ready reports whether a state dataset has loaded.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// Municipalities returns the selectable municipality table.
func (p *Pipeline) Municipalities() []domain.Municipality {
	out := make([]domain.Municipality, len(domain.GoiasMunicipalities))
	copy(out, domain.GoiasMunicipalities)
	return out
}

// Warm loads the state dataset for disease, and the state mesh when a geo
// source is configured, retrying with exponential backoff until the dataset
// loads or ctx is cancelled. The mesh is best-effort.
func (p *Pipeline) Warm(ctx context.Context, disease domain.Disease) error {
	// Start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	q := p.stateQuery(disease)
	for attempt := 1; ; attempt++ {
		rows, err := p.epi.FetchState(ctx, q)
		if err == nil {
			p.markReady()
			p.logger.Info("surveillance data loaded",
				"disease", disease,
				"uf", p.stateCode,
				"rows", len(rows),
				"attempts", attempt,
			)
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Warn("warm-up fetch failed, retrying",
			"error", err,
			"disease", disease,
			"attempt", attempt,
			"backoff", backoff,
		)
		if !retry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}

	if p.geo != nil {
		if _, err := p.geo.MunicipalityMesh(ctx, p.stateCode); err != nil {
			p.logger.Warn("warm-up mesh fetch failed", "error", err, "uf", p.stateCode)
		}
	}
	return nil
}

func (p *Pipeline) markReady() {
	if !p.ready.Swap(true) {
		p.metrics.PipelineReady.Set(1)
	}
}

func (p *Pipeline) stateQuery(disease domain.Disease) domain.StateQuery {
	end := today(p.clock)
	return domain.StateQuery{
		UF:      p.stateCode,
		Disease: disease,
		Start:   end.Add(-p.lookback),
		End:     end,
	}
}

// municipalityQuery covers every epidemiological week of the previous and
// current year.
func (p *Pipeline) municipalityQuery(disease domain.Disease, geocode string) domain.MunicipalityQuery {
	year := today(p.clock).Year()
	return domain.MunicipalityQuery{
		Geocode: geocode,
		Disease: disease,
		EWStart: 1,
		EWEnd:   53,
		EYStart: year - 1,
		EYEnd:   year,
	}
}

func today(clock clockwork.Clock) time.Time {
	now := clock.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

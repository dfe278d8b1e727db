package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/arbovirus-dashboard/internal/chart"
	"github.com/couchcryptid/arbovirus-dashboard/internal/domain"
)

// Status summarizes how a dashboard's data was obtained.
type Status string

const (
	StatusOK          Status = "ok"
	StatusNoData      Status = "no_data"
	StatusFetchFailed Status = "fetch_failed"
)

// ErrUnknownMunicipality is returned for names outside the static table.
var ErrUnknownMunicipality = errors.New("unknown municipality")

const dateLayout = "2006-01-02"

// Window is the date range a state view queried.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// StateRequest selects a state view.
type StateRequest struct {
	Disease   domain.Disease
	MapMetric chart.Metric
}

// StateDashboard is the statewide view.
type StateDashboard struct {
	Disease     domain.Disease `json:"disease"`
	State       string         `json:"state"`
	Window      Window         `json:"window"`
	Status      Status         `json:"status"`
	Warnings    []string       `json:"warnings"`
	Approximate bool           `json:"approximate"`
	Records     int            `json:"records"`

	Summary        domain.Summary          `json:"summary"`
	TimeSeries     *chart.Series           `json:"time_series"`
	Distribution   *chart.Bars             `json:"alert_distribution"`
	Map            *chart.Map              `json:"map"`
	Municipalities []chart.MunicipalityRow `json:"municipalities"`
}

// MunicipalityRequest selects a single-municipality view by name.
type MunicipalityRequest struct {
	Disease domain.Disease
	Name    string
}

// LatestWeek is the headline of a municipality view.
type LatestWeek struct {
	WeekStart      string  `json:"week_start"`
	CasesEstimated float64 `json:"cases_estimated"`
	CasesReported  float64 `json:"cases_reported"`
	Rt             float64 `json:"rt"`
	AlertLevel     int     `json:"alert_level"`
	AlertName      string  `json:"alert_name"`
	AlertColor     string  `json:"alert_color"`
}

// MunicipalityDashboard is the single-municipality view.
type MunicipalityDashboard struct {
	Disease      domain.Disease      `json:"disease"`
	Municipality domain.Municipality `json:"municipality"`
	Status       Status              `json:"status"`
	Warnings     []string            `json:"warnings"`
	Approximate  bool                `json:"approximate"`
	Records      int                 `json:"records"`

	Summary    domain.Summary    `json:"summary"`
	Latest     *LatestWeek       `json:"latest"`
	TimeSeries *chart.Series     `json:"time_series"`
	Detail     []chart.DetailRow `json:"detail"`
}

// StateView builds the statewide dashboard for req.Disease. Fetch failures
// and empty data are reported through Status and Warnings with zero metrics.
func (p *Pipeline) StateView(ctx context.Context, req StateRequest) StateDashboard {
	q := p.stateQuery(req.Disease)
	d := StateDashboard{
		Disease:  req.Disease,
		State:    p.stateCode,
		Window:   Window{Start: q.Start.Format(dateLayout), End: q.End.Format(dateLayout)},
		Warnings: []string{},
	}
	defer func() { p.metrics.ViewsServed.WithLabelValues("state", string(d.Status)).Inc() }()

	rows, err := p.epi.FetchState(ctx, q)
	if err != nil {
		p.logger.Warn("state fetch failed", "error", err, "disease", req.Disease, "uf", p.stateCode)
		d.Status = StatusFetchFailed
		d.Warnings = append(d.Warnings, "Could not load surveillance data from the upstream API.")
		return d
	}
	p.markReady()

	records := processRows(rows)
	d.Records = len(records)
	if len(records) == 0 {
		d.Status = StatusNoData
		d.Warnings = append(d.Warnings, fmt.Sprintf("No %s data available for %s in the selected period.", req.Disease, p.stateCode))
		return d
	}
	d.Status = StatusOK

	snapshot := domain.LatestPerMunicipality(records)
	if snapshot.Approximate {
		d.Approximate = true
		d.Warnings = append(d.Warnings, "Municipality codes are missing; latest values per municipality are approximated by name.")
	}

	d.Summary = domain.Summarize(snapshot)
	d.TimeSeries = chart.TimeSeries("Estimated vs reported cases", domain.AggregateByWeek(records))
	d.Distribution = chart.AlertBars(domain.AlertDistribution(snapshot))
	d.Municipalities = chart.MunicipalityTable(snapshot)
	d.Map = p.buildMap(ctx, snapshot, req.MapMetric, &d.Warnings)

	p.publish(ctx, req.Disease, snapshot)
	return d
}

func (p *Pipeline) buildMap(ctx context.Context, s domain.Snapshot, metric chart.Metric, warnings *[]string) *chart.Map {
	if p.geo == nil {
		return nil
	}
	if metric == "" {
		metric = chart.MetricIncidence
	}

	mesh, err := p.geo.MunicipalityMesh(ctx, p.stateCode)
	if err != nil {
		p.logger.Warn("mesh fetch failed", "error", err, "uf", p.stateCode)
		*warnings = append(*warnings, "Map unavailable: municipality geometry could not be loaded.")
		return nil
	}

	m := chart.Choropleth(mesh, s, metric)
	if m == nil {
		*warnings = append(*warnings, "Map unavailable: no municipality geometry matched the data.")
	}
	return m
}

// MunicipalityView builds the dashboard for one municipality of the static
// table. The only error is ErrUnknownMunicipality; upstream failures are
// reported through Status and Warnings.
func (p *Pipeline) MunicipalityView(ctx context.Context, req MunicipalityRequest) (MunicipalityDashboard, error) {
	m, ok := domain.LookupMunicipality(req.Name)
	if !ok {
		return MunicipalityDashboard{}, fmt.Errorf("%w: %q", ErrUnknownMunicipality, req.Name)
	}

	d := MunicipalityDashboard{
		Disease:      req.Disease,
		Municipality: m,
		Warnings:     []string{},
	}
	defer func() { p.metrics.ViewsServed.WithLabelValues("municipality", string(d.Status)).Inc() }()

	rows, err := p.epi.FetchMunicipality(ctx, p.municipalityQuery(req.Disease, m.Code))
	if err != nil {
		p.logger.Warn("municipality fetch failed", "error", err, "disease", req.Disease, "geocode", m.Code)
		d.Status = StatusFetchFailed
		d.Warnings = append(d.Warnings, fmt.Sprintf("Could not load surveillance data for %s from the upstream API.", m.Name))
		return d, nil
	}

	records := processMunicipalityRows(rows, m)
	d.Records = len(records)
	if len(records) == 0 {
		d.Status = StatusNoData
		d.Warnings = append(d.Warnings, fmt.Sprintf("No %s data available for %s.", req.Disease, m.Name))
		return d, nil
	}
	d.Status = StatusOK

	snapshot := domain.LatestPerMunicipality(records)
	d.Approximate = snapshot.Approximate
	d.Summary = domain.Summarize(snapshot)
	d.Latest = latestWeekOf(records[len(records)-1])
	d.TimeSeries = chart.TimeSeries("Estimated vs reported cases - "+m.Name, domain.AggregateByWeek(records))
	d.Detail = chart.DetailTable(records)
	return d, nil
}

func latestWeekOf(r domain.Record) *LatestWeek {
	lw := &LatestWeek{
		CasesEstimated: r.CasesEstimated.OrZero(),
		CasesReported:  r.CasesReported.OrZero(),
		Rt:             r.ReproductionNumber.OrZero(),
		AlertLevel:     int(r.AlertLevel),
		AlertName:      r.AlertLevel.Name(),
		AlertColor:     r.AlertLevel.Color(),
	}
	if r.HasDate() {
		lw.WeekStart = r.WeekStart.Format(dateLayout)
	}
	return lw
}

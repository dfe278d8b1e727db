// Package chart turns processed surveillance records into render-ready
// chart and map data. Builders return nil when their inputs are missing
// so callers can omit the chart instead of drawing an empty one.
package chart

import (
	"github.com/couchcryptid/arbovirus-dashboard/internal/domain"
)

const dateLayout = "2006-01-02"

// Series is a line chart of estimated vs reported cases per week.
type Series struct {
	Title  string        `json:"title"`
	Points []SeriesPoint `json:"points"`
}

// SeriesPoint is one week of the time series.
type SeriesPoint struct {
	Date      string  `json:"date"`
	Estimated float64 `json:"estimated"`
	Reported  float64 `json:"reported"`
}

// TimeSeries emits one point per week total, in input order. It returns nil
// when there are no dated rows.
func TimeSeries(title string, totals []domain.WeekTotal) *Series {
	if len(totals) == 0 {
		return nil
	}
	s := &Series{Title: title, Points: make([]SeriesPoint, 0, len(totals))}
	for _, t := range totals {
		s.Points = append(s.Points, SeriesPoint{
			Date:      t.WeekStart.Format(dateLayout),
			Estimated: t.Estimated,
			Reported:  t.Reported,
		})
	}
	return s
}

package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
)

// Disease identifies the arbovirus a query is about.
type Disease string

const (
	Dengue      Disease = "dengue"
	Zika        Disease = "zika"
	Chikungunya Disease = "chikungunya"
)

// Diseases lists every disease the upstream APIs serve, in display order.
var Diseases = []Disease{Dengue, Zika, Chikungunya}

// ParseDisease validates a disease name. Matching is case-insensitive.
func ParseDisease(s string) (Disease, error) {
	d := Disease(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Diseases {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown disease %q", s)
}

// RawRecord is one upstream row with its fields still in wire form.
// Column presence is never guaranteed.
type RawRecord map[string]json.RawMessage

// Number is a numeric field that remembers whether a value was present.
// Missing values only become zero at the presentation boundary via OrZero.
type Number struct {
	Value float64
	Valid bool
}

// Num returns a valid Number holding v.
func Num(v float64) Number { return Number{Value: v, Valid: true} }

// OrZero returns the value, or 0 when missing.
func (n Number) OrZero() float64 {
	if !n.Valid {
		return 0
	}
	return n.Value
}

// Record is one epidemiological observation for a municipality in one
// epidemiological week.
type Record struct {
	MunicipalityCode string
	MunicipalityName string
	WeekStart        time.Time // zero when missing or unparseable
	EpiWeek          int       // YYYYWW, 0 when missing

	CasesReported     Number
	CasesEstimated    Number
	CasesEstimatedMin Number
	CasesEstimatedMax Number

	IncidencePer100k   Number
	ProbRtAbove1       Number
	ReproductionNumber Number // <= 0 means unknown
	AlertLevel         AlertLevel

	Population   Number
	Receptivity  Number
	Transmission Number

	TempMin     Number
	TempMed     Number
	TempMax     Number
	HumidityMin Number
	HumidityMed Number
	HumidityMax Number

	ProbableCases       Number
	ProbableCasesEst    Number
	ProbableCasesEstMin Number
	ProbableCasesEstMax Number
	ConfirmedCases      Number
}

// HasDate reports whether the record carries a parsed week start.
func (r Record) HasDate() bool { return !r.WeekStart.IsZero() }

// StateQuery selects bulk data for one state over a date window.
type StateQuery struct {
	UF      string
	Disease Disease
	Start   time.Time
	End     time.Time
}

// MunicipalityQuery selects one municipality over epidemiological week/year bounds.
type MunicipalityQuery struct {
	Geocode string
	Disease Disease
	EWStart int
	EWEnd   int
	EYStart int
	EYEnd   int
}

// EpiSource fetches raw surveillance rows from upstream.
type EpiSource interface {
	// FetchState returns every row of the bulk regional endpoint for the query.
	FetchState(ctx context.Context, q StateQuery) ([]RawRecord, error)

	// FetchMunicipality returns the rows of the single-municipality endpoint.
	FetchMunicipality(ctx context.Context, q MunicipalityQuery) ([]RawRecord, error)
}

// GeoSource supplies municipality geometries for a state, keyed by IBGE code.
type GeoSource interface {
	MunicipalityMesh(ctx context.Context, uf string) (*geojson.FeatureCollection, error)
}

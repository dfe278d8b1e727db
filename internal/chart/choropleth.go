package chart

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/couchcryptid/arbovirus-dashboard/internal/domain"
)

// Metric selects what a choropleth colors municipalities by.
type Metric string

const (
	MetricIncidence Metric = "incidence"
	MetricAlert     Metric = "alert"
	MetricRt        Metric = "rt"
)

// Metrics lists the supported map metrics; the first is the default.
var Metrics = []Metric{MetricIncidence, MetricAlert, MetricRt}

// ParseMetric validates a map metric. Empty selects incidence; the upstream
// column names p_inc100k, nivel and Rt are accepted as aliases.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "incidence", "p_inc100k":
		return MetricIncidence, nil
	case "alert", "nivel":
		return MetricAlert, nil
	case "rt":
		return MetricRt, nil
	}
	return "", fmt.Errorf("unknown map metric %q", s)
}

// Feature properties set on every map feature.
const (
	PropCode  = "municipality_code"
	PropName  = "municipality_name"
	PropValue = "value"
	PropColor = "color"
)

// NoDataColor fills features that have geometry but no record.
const NoDataColor = "#d9d9d9"

var (
	ylOrRd  = []string{"#ffffb2", "#fecc5c", "#fd8d3c", "#f03b20", "#bd0026"}
	viridis = []string{"#440154", "#3b528b", "#21918c", "#5ec962", "#fde725"}
)

type metricSpec struct {
	title string
	scale string
	stops []colorful.Color
	// value reports false when the record has no usable value.
	value func(domain.Record) (float64, bool)
}

var metricSpecs = map[Metric]metricSpec{
	MetricIncidence: {
		title: "Incidence (cases per 100k inhabitants)",
		scale: "YlOrRd",
		stops: mustParseScale(ylOrRd),
		value: func(r domain.Record) (float64, bool) {
			return r.IncidencePer100k.Value, r.IncidencePer100k.Valid
		},
	},
	MetricAlert: {
		title: "Alert level",
		scale: "alert",
		value: func(r domain.Record) (float64, bool) { return float64(r.AlertLevel), true },
	},
	MetricRt: {
		title: "Effective reproduction number (Rt)",
		scale: "Viridis",
		stops: mustParseScale(viridis),
		// Rt <= 0 means it could not be estimated.
		value: func(r domain.Record) (float64, bool) {
			rt := r.ReproductionNumber
			return rt.Value, rt.Valid && rt.Value > 0
		},
	},
}

// Map is a colored municipality map.
type Map struct {
	Metric Metric   `json:"metric"`
	Title  string   `json:"title"`
	Scale  string   `json:"scale"`
	Colors []string `json:"colors"`
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
	// Center is the area-weighted centroid, [lon, lat].
	Center   orb.Point                  `json:"center"`
	Matched  int                        `json:"matched"`
	Features *geojson.FeatureCollection `json:"features"`
}

// Choropleth joins the snapshot onto mesh features by municipality code and
// colors each feature by metric. Features without a record, or whose record
// lacks the metric (missing incidence, unknown Rt), are kept with a null value
// and NoDataColor and do not affect the color range. It returns nil when the
// mesh or snapshot is empty, the metric is unknown, or no feature matched a
// record.
func Choropleth(mesh *geojson.FeatureCollection, s domain.Snapshot, metric Metric) *Map {
	spec, ok := metricSpecs[metric]
	if !ok || mesh == nil || len(mesh.Features) == 0 || s.Len() == 0 {
		return nil
	}

	byCode := make(map[string]domain.Record, s.Len())
	for _, r := range s.Records {
		if r.MunicipalityCode != "" {
			byCode[r.MunicipalityCode] = r
		}
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	matched := 0
	for _, f := range mesh.Features {
		r, ok := byCode[domain.FeatureCode(f)]
		if !ok {
			continue
		}
		matched++
		if v, known := spec.value(r); known {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if matched == 0 {
		return nil
	}
	if lo > hi {
		lo, hi = 0, 0
	}
	if metric == MetricAlert {
		lo, hi = float64(domain.AlertGreen), float64(domain.AlertRed)
	}

	out := geojson.NewFeatureCollection()
	for _, f := range mesh.Features {
		code := domain.FeatureCode(f)
		nf := geojson.NewFeature(f.Geometry)
		nf.ID = f.ID
		nf.Properties = f.Properties.Clone()
		nf.Properties[PropCode] = code

		r, ok := byCode[code]
		nf.Properties[PropName] = featureName(code, r, ok)
		v, known := 0.0, false
		if ok {
			v, known = spec.value(r)
		}
		if known {
			nf.Properties[PropValue] = v
			nf.Properties[PropColor] = spec.color(r, v, lo, hi)
		} else {
			nf.Properties[PropValue] = nil
			nf.Properties[PropColor] = NoDataColor
		}
		out.Append(nf)
	}

	return &Map{
		Metric:   metric,
		Title:    spec.title,
		Scale:    spec.scale,
		Colors:   spec.legend(),
		Min:      lo,
		Max:      hi,
		Center:   center(out),
		Matched:  matched,
		Features: out,
	}
}

func (m metricSpec) color(r domain.Record, v, lo, hi float64) string {
	if m.stops == nil {
		return r.AlertLevel.Color()
	}
	t := 0.0
	if hi > lo {
		t = (v - lo) / (hi - lo)
	}
	return interpolate(m.stops, t)
}

func (m metricSpec) legend() []string {
	if m.stops == nil {
		colors := make([]string, 0, len(domain.AlertLevels))
		for _, l := range domain.AlertLevels {
			colors = append(colors, l.Color())
		}
		return colors
	}
	colors := make([]string, 0, len(m.stops))
	for _, c := range m.stops {
		colors = append(colors, c.Hex())
	}
	return colors
}

// interpolate blends between evenly spaced stops in CIE-L*a*b* space.
func interpolate(stops []colorful.Color, t float64) string {
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(stops)-1)
	i := int(pos)
	if i >= len(stops)-1 {
		return stops[len(stops)-1].Hex()
	}
	return stops[i].BlendLab(stops[i+1], pos-float64(i)).Clamped().Hex()
}

func featureName(code string, r domain.Record, matched bool) string {
	if matched && r.MunicipalityName != "" {
		return r.MunicipalityName
	}
	if m, ok := domain.MunicipalityByCode(code); ok {
		return m.Name
	}
	return ""
}

// center returns the area-weighted centroid of the collection, or the
// center of its bounds when no feature has area.
func center(fc *geojson.FeatureCollection) orb.Point {
	var cx, cy, total float64
	var bound orb.Bound
	haveBound := false

	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if haveBound {
			bound = bound.Union(f.Geometry.Bound())
		} else {
			bound, haveBound = f.Geometry.Bound(), true
		}
		c, a := planar.CentroidArea(f.Geometry)
		a = math.Abs(a)
		cx += c[0] * a
		cy += c[1] * a
		total += a
	}

	if total > 0 {
		return orb.Point{cx / total, cy / total}
	}
	return bound.Center()
}

func mustParseScale(hexes []string) []colorful.Color {
	colors := make([]colorful.Color, 0, len(hexes))
	for _, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			panic(err)
		}
		colors = append(colors, c)
	}
	return colors
}

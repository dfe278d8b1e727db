package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Upstream column names. The bulk endpoint uses municipio_geocodigo; the
// single-municipality endpoint and older dumps use geocode. The week start
// appears as data_iniSE or, in older payloads, data_ini_SE.
const (
	colGeocode      = "municipio_geocodigo"
	colGeocodeAlt   = "geocode"
	colName         = "municipio_nome"
	colWeekStart    = "data_iniSE"
	colWeekStartAlt = "data_ini_SE"
	colEpiWeek      = "SE"
	colAlertLevel   = "nivel"
)

// numericFields binds every coerced numeric column to its Record field.
var numericFields = []struct {
	column string
	field  func(*Record) *Number
}{
	{"casos", func(r *Record) *Number { return &r.CasesReported }},
	{"casos_est", func(r *Record) *Number { return &r.CasesEstimated }},
	{"casos_est_min", func(r *Record) *Number { return &r.CasesEstimatedMin }},
	{"casos_est_max", func(r *Record) *Number { return &r.CasesEstimatedMax }},
	{"p_inc100k", func(r *Record) *Number { return &r.IncidencePer100k }},
	{"p_rt1", func(r *Record) *Number { return &r.ProbRtAbove1 }},
	{"Rt", func(r *Record) *Number { return &r.ReproductionNumber }},
	{"pop", func(r *Record) *Number { return &r.Population }},
	{"receptivo", func(r *Record) *Number { return &r.Receptivity }},
	{"transmissao", func(r *Record) *Number { return &r.Transmission }},
	{"tempmin", func(r *Record) *Number { return &r.TempMin }},
	{"tempmed", func(r *Record) *Number { return &r.TempMed }},
	{"tempmax", func(r *Record) *Number { return &r.TempMax }},
	{"umidmin", func(r *Record) *Number { return &r.HumidityMin }},
	{"umidmed", func(r *Record) *Number { return &r.HumidityMed }},
	{"umidmax", func(r *Record) *Number { return &r.HumidityMax }},
	{"casprov", func(r *Record) *Number { return &r.ProbableCases }},
	{"casprov_est", func(r *Record) *Number { return &r.ProbableCasesEst }},
	{"casprov_est_min", func(r *Record) *Number { return &r.ProbableCasesEstMin }},
	{"casprov_est_max", func(r *Record) *Number { return &r.ProbableCasesEstMax }},
	{"casconf", func(r *Record) *Number { return &r.ConfirmedCases }},
}

// dateLayouts are tried in order for string week-start values.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.000",
}

// ParseRecord coerces one raw row into a Record. Values that fail coercion
// are left missing rather than rejected.
func ParseRecord(raw RawRecord) Record {
	var rec Record

	rec.MunicipalityCode = parseCode(raw[colGeocode])
	if rec.MunicipalityCode == "" {
		rec.MunicipalityCode = parseCode(raw[colGeocodeAlt])
	}
	rec.MunicipalityName = parseString(raw[colName])

	rec.WeekStart = parseDate(raw[colWeekStart])
	if rec.WeekStart.IsZero() {
		rec.WeekStart = parseDate(raw[colWeekStartAlt])
	}

	if n := parseNumber(raw[colEpiWeek]); n.Valid && n.Value == math.Trunc(n.Value) {
		rec.EpiWeek = int(n.Value)
	}

	for _, f := range numericFields {
		*f.field(&rec) = parseNumber(raw[f.column])
	}

	rec.AlertLevel = parseAlertLevel(raw[colAlertLevel])
	return rec
}

// ParseRecords coerces every row, preserving order.
func ParseRecords(rows []RawRecord) []Record {
	if len(rows) == 0 {
		return nil
	}
	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = ParseRecord(row)
	}
	return out
}

// Process cleans a record set: alert levels are normalized, rows are
// stable-sorted by week start when any row carries a date, and duplicate
// (municipality, week) pairs keep the last row. The input is not modified
// and Process(Process(x)) equals Process(x).
func Process(records []Record) []Record {
	if len(records) == 0 {
		return nil
	}

	out := make([]Record, len(records))
	copy(out, records)
	for i := range out {
		out[i].AlertLevel = NormalizeAlertLevel(int(out[i].AlertLevel))
	}

	sortByWeek(out)
	return dedupeLastWins(out)
}

func sortByWeek(records []Record) {
	for _, r := range records {
		if r.HasDate() {
			sort.SliceStable(records, func(i, j int) bool {
				return records[i].WeekStart.Before(records[j].WeekStart)
			})
			return
		}
	}
}

// dedupeLastWins drops all but the last row of each (municipality, week)
// pair. Rows lacking either key are always kept.
func dedupeLastWins(records []Record) []Record {
	last := make(map[string]int, len(records))
	for i, r := range records {
		if k, ok := weekKey(r); ok {
			last[k] = i
		}
	}
	if len(last) == 0 {
		return records
	}

	out := records[:0:0]
	for i, r := range records {
		if k, ok := weekKey(r); ok && last[k] != i {
			continue
		}
		out = append(out, r)
	}
	return out
}

func weekKey(r Record) (string, bool) {
	if r.MunicipalityCode == "" || !r.HasDate() {
		return "", false
	}
	return r.MunicipalityCode + "|" + r.WeekStart.Format("2006-01-02"), true
}

func isNull(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) == 0 || bytes.Equal(v, []byte("null"))
}

// parseNumber accepts JSON numbers and numeric strings (a decimal comma is
// tolerated). NaN, infinities and everything else are missing.
func parseNumber(v json.RawMessage) Number {
	if isNull(v) {
		return Number{}
	}

	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return finite(f)
	}

	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return Number{}
	}
	return parseNumericString(s)
}

func parseNumericString(s string) Number {
	s = strings.TrimSpace(s)
	if s == "" {
		return Number{}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
			f, err = strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
		}
		if err != nil {
			return Number{}
		}
	}
	return finite(f)
}

func finite(f float64) Number {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Number{}
	}
	return Num(f)
}

// parseCode renders a geocode given as a string or an integral number.
func parseCode(v json.RawMessage) string {
	if isNull(v) {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}
	n := parseNumber(v)
	if !n.Valid || n.Value != math.Trunc(n.Value) {
		return ""
	}
	return strconv.FormatInt(int64(n.Value), 10)
}

func parseString(v json.RawMessage) string {
	if isNull(v) {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// parseDate accepts ISO dates/datetimes or epoch milliseconds (the
// InfoDengue alertcity JSON encoding) and truncates to a UTC date.
func parseDate(v json.RawMessage) time.Time {
	if isNull(v) {
		return time.Time{}
	}

	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		s = strings.TrimSpace(s)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return truncateDay(t)
			}
		}
		return time.Time{}
	}

	var ms float64
	if err := json.Unmarshal(v, &ms); err == nil && !math.IsNaN(ms) && !math.IsInf(ms, 0) {
		return truncateDay(time.UnixMilli(int64(ms)))
	}
	return time.Time{}
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func parseAlertLevel(v json.RawMessage) AlertLevel {
	n := parseNumber(v)
	if !n.Valid || n.Value != math.Trunc(n.Value) {
		return AlertUnknown
	}
	return NormalizeAlertLevel(int(n.Value))
}

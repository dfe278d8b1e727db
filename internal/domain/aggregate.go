package domain

import (
	"sort"
	"time"
)

// Snapshot holds the most recent record per municipality of a record set.
type Snapshot struct {
	Records []Record

	// Approximate is set when no record carried a municipality code and the
	// snapshot was derived from municipality names instead. Rows may be
	// dropped or misattributed in that mode.
	Approximate bool
}

// Len returns the number of municipalities in the snapshot.
func (s Snapshot) Len() int { return len(s.Records) }

// LatestPerMunicipality returns the last record by week start for every
// municipality code, ordered by code. Records without a code share one group.
//
// When no record has a code it falls back to the name-based approximation:
// the table is sorted by date and its last N rows are kept, where N is the
// number of distinct municipality names.
func LatestPerMunicipality(records []Record) Snapshot {
	if len(records) == 0 {
		return Snapshot{}
	}

	sorted := make([]Record, len(records))
	copy(sorted, records)
	sortByWeek(sorted)

	if !anyCode(sorted) {
		return approximateLatest(sorted)
	}

	latest := make(map[string]Record)
	for _, r := range sorted {
		latest[r.MunicipalityCode] = r
	}

	out := make([]Record, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].MunicipalityCode < out[j].MunicipalityCode
	})
	return Snapshot{Records: out}
}

func anyCode(records []Record) bool {
	for _, r := range records {
		if r.MunicipalityCode != "" {
			return true
		}
	}
	return false
}

func approximateLatest(sorted []Record) Snapshot {
	names := make(map[string]struct{})
	for _, r := range sorted {
		names[r.MunicipalityName] = struct{}{}
	}
	n := len(names)
	tail := make([]Record, n)
	copy(tail, sorted[len(sorted)-n:])
	return Snapshot{Records: tail, Approximate: true}
}

// WeekTotal is the sum of cases over all municipalities for one week.
type WeekTotal struct {
	WeekStart time.Time
	Estimated float64
	Reported  float64
}

// AggregateByWeek sums estimated and reported cases per week start in
// ascending order. Records without a date are excluded; missing values
// contribute nothing.
func AggregateByWeek(records []Record) []WeekTotal {
	byWeek := make(map[time.Time]*WeekTotal)
	for _, r := range records {
		if !r.HasDate() {
			continue
		}
		t, ok := byWeek[r.WeekStart]
		if !ok {
			t = &WeekTotal{WeekStart: r.WeekStart}
			byWeek[r.WeekStart] = t
		}
		t.Estimated += r.CasesEstimated.OrZero()
		t.Reported += r.CasesReported.OrZero()
	}
	if len(byWeek) == 0 {
		return nil
	}

	out := make([]WeekTotal, 0, len(byWeek))
	for _, t := range byWeek {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].WeekStart.Before(out[j].WeekStart)
	})
	return out
}

// AlertCount is the number of municipalities at one alert level.
type AlertCount struct {
	Level AlertLevel
	Count int
}

// AlertDistribution counts snapshot rows per alert level, ascending by level.
// Counts always sum to the snapshot size.
func AlertDistribution(s Snapshot) []AlertCount {
	counts := make(map[AlertLevel]int)
	for _, r := range s.Records {
		counts[NormalizeAlertLevel(int(r.AlertLevel))]++
	}
	if len(counts) == 0 {
		return nil
	}

	out := make([]AlertCount, 0, len(counts))
	for level, n := range counts {
		out = append(out, AlertCount{Level: level, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out
}

// Summary is the headline metric set of a snapshot.
type Summary struct {
	TotalReported  float64 `json:"total_reported"`
	TotalEstimated float64 `json:"total_estimated"`
	MeanRt         float64 `json:"mean_rt"`
	Municipalities int     `json:"municipalities"`
	Green          int     `json:"green"`
	Yellow         int     `json:"yellow"`
	Orange         int     `json:"orange"`
	Red            int     `json:"red"`
	Unknown        int     `json:"unknown"`
}

// Summarize computes headline metrics from a snapshot. MeanRt averages only
// known reproduction numbers (present and > 0); it is 0 when none are known.
func Summarize(s Snapshot) Summary {
	var sum Summary
	var rtSum float64
	var rtN int

	for _, r := range s.Records {
		sum.TotalReported += r.CasesReported.OrZero()
		sum.TotalEstimated += r.CasesEstimated.OrZero()
		if r.ReproductionNumber.Valid && r.ReproductionNumber.Value > 0 {
			rtSum += r.ReproductionNumber.Value
			rtN++
		}
		switch NormalizeAlertLevel(int(r.AlertLevel)) {
		case AlertGreen:
			sum.Green++
		case AlertYellow:
			sum.Yellow++
		case AlertOrange:
			sum.Orange++
		case AlertRed:
			sum.Red++
		default:
			sum.Unknown++
		}
	}

	sum.Municipalities = len(s.Records)
	if rtN > 0 {
		sum.MeanRt = rtSum / float64(rtN)
	}
	return sum
}

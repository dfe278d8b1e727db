// Command validate checks recorded upstream responses offline: bulk pages
// from the regional datastore, an alertcity response for one municipality,
// and the state municipality mesh. It runs them through the same
// normalize → process → aggregate → chart steps the dashboard uses and
// verifies the invariants those steps promise.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -bulk cmd/validate/testdata/go_dengue_p1.json,cmd/validate/testdata/go_dengue_p2.json \
//	  -alertcity internal/adapter/infodengue/testdata/alertcity_goiania.json \
//	  -mesh internal/adapter/ibge/testdata/go_municipios.geojson
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/arbovirus-dashboard/internal/adapter/infodengue"
	"github.com/couchcryptid/arbovirus-dashboard/internal/chart"
	"github.com/couchcryptid/arbovirus-dashboard/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	bulk := flag.String("bulk", "", "comma-separated recorded bulk page files, in page order")
	alertcity := flag.String("alertcity", "", "recorded alertcity response (optional)")
	mesh := flag.String("mesh", "", "recorded state municipality mesh GeoJSON (optional)")
	metric := flag.String("metric", "incidence", "choropleth metric: incidence, alert or rt")
	flag.Parse()

	if *bulk == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(strings.Split(*bulk, ","), *alertcity, *mesh, *metric); code != 0 {
		os.Exit(code)
	}
}

func run(bulkPaths []string, alertcityPath, meshPath, metricName string) int {
	fmt.Println("=== Surveillance Data Validation ===")
	fmt.Println()

	m, err := chart.ParseMetric(metricName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	// ── Load recorded responses ──
	pages := make([][]domain.RawRecord, 0, len(bulkPaths))
	totals := make([]int, 0, len(bulkPaths))
	for _, path := range bulkPaths {
		data, err := os.ReadFile(strings.TrimSpace(path))
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load bulk page: %v\n", err)
			return 1
		}
		rows, total := infodengue.DecodeBulkPage(data)
		pages = append(pages, rows)
		totals = append(totals, total)
	}

	var cityRows []domain.RawRecord
	if alertcityPath != "" {
		data, err := os.ReadFile(alertcityPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load alertcity response: %v\n", err)
			return 1
		}
		cityRows = domain.Normalize(data)
	}

	var fc *geojson.FeatureCollection
	if meshPath != "" {
		data, err := os.ReadFile(meshPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load mesh: %v\n", err)
			return 1
		}
		fc, err = geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: decode mesh: %v\n", err)
			return 1
		}
	}

	var rows []domain.RawRecord
	for _, p := range pages {
		rows = append(rows, p...)
	}
	records := domain.Process(domain.ParseRecords(rows))
	snapshot := domain.LatestPerMunicipality(records)

	// ── Run validation phases ──
	phases := []*phase{
		validateBulkPages(bulkPaths, pages, totals),
		validateProcessing(records, snapshot),
	}
	if alertcityPath != "" {
		phases = append(phases, validateMunicipality(cityRows))
	}
	if fc != nil {
		phases = append(phases, validateMeshJoin(fc, snapshot, m))
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d bulk, %d processed, %d municipalities, %d alertcity\n",
		len(rows), len(records), snapshot.Len(), len(cityRows))
	if snapshot.Approximate {
		fmt.Println("  Note: municipality codes missing; snapshot approximated by name")
	}

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Bulk pages ──
// Validates page shape and the page count each page advertises.

func validateBulkPages(paths []string, pages [][]domain.RawRecord, totals []int) *phase {
	p := &phase{name: "Phase 1: Bulk Pages (shape)"}

	for i, rows := range pages {
		if len(rows) == 0 {
			p.errorf("%s: no rows decoded", paths[i])
			continue
		}
		if totals[i] != totals[0] {
			p.errorf("%s: advertises %d pages, first page advertised %d", paths[i], totals[i], totals[0])
		}
		for j, row := range rows {
			if !hasAny(row, "municipio_geocodigo", "geocode") && !hasAny(row, "municipio_nome") {
				p.errorf("%s row %d: no municipality code or name column", paths[i], j)
			}
			if !hasAny(row, "data_iniSE", "data_ini_SE") {
				p.errorf("%s row %d: no week start column", paths[i], j)
			}
		}
	}
	if len(pages) > 0 && totals[0] > len(pages) {
		fmt.Printf("  Note: %d of %d advertised pages supplied\n", len(pages), totals[0])
	}
	return p
}

func hasAny(row domain.RawRecord, cols ...string) bool {
	for _, c := range cols {
		if _, ok := row[c]; ok {
			return true
		}
	}
	return false
}

// ── Phase 2: Processing ──
// Validates ordering, idempotence, alert levels and aggregate consistency.

func validateProcessing(records []domain.Record, snapshot domain.Snapshot) *phase {
	p := &phase{name: "Phase 2: Processing (invariants)"}

	checkOrdering(p, records)

	if diff := cmp.Diff(records, domain.Process(records)); diff != "" {
		p.errorf("processing is not idempotent (-first +second):\n%s", diff)
	}

	for i, r := range records {
		if r.AlertLevel < domain.AlertUnknown || r.AlertLevel > domain.AlertRed {
			p.errorf("record %d: alert level %d outside 0..4", i, r.AlertLevel)
		}
	}

	total := 0
	for _, c := range domain.AlertDistribution(snapshot) {
		total += c.Count
	}
	if total != snapshot.Len() {
		p.errorf("alert distribution sums to %d, snapshot has %d municipalities", total, snapshot.Len())
	}

	seen := make(map[string]bool, snapshot.Len())
	for _, r := range snapshot.Records {
		key := r.MunicipalityCode
		if snapshot.Approximate {
			key = r.MunicipalityName
		}
		if seen[key] {
			p.errorf("snapshot: municipality %q appears more than once", key)
		}
		seen[key] = true
	}

	sum := domain.Summarize(snapshot)
	if n := sum.Green + sum.Yellow + sum.Orange + sum.Red + sum.Unknown; n != sum.Municipalities {
		p.errorf("summary: level counts sum to %d, municipalities is %d", n, sum.Municipalities)
	}
	return p
}

func checkOrdering(p *phase, records []domain.Record) {
	for i := 1; i < len(records); i++ {
		if records[i].HasDate() && records[i-1].HasDate() && records[i].WeekStart.Before(records[i-1].WeekStart) {
			p.errorf("record %d: week %s sorts after %s", i,
				records[i].WeekStart.Format("2006-01-02"), records[i-1].WeekStart.Format("2006-01-02"))
		}
	}
}

// ── Phase 3: Municipality ──
// Validates a single-municipality response.

func validateMunicipality(rows []domain.RawRecord) *phase {
	p := &phase{name: "Phase 3: Municipality (alertcity)"}

	if len(rows) == 0 {
		p.errorf("no rows decoded")
		return p
	}
	records := domain.Process(domain.ParseRecords(rows))
	checkOrdering(p, records)

	codes := map[string]bool{}
	for _, r := range records {
		if r.MunicipalityCode != "" {
			codes[r.MunicipalityCode] = true
		}
		if !r.HasDate() {
			p.errorf("week %d: missing or unparseable week start", r.EpiWeek)
		}
	}
	if len(codes) > 1 {
		p.errorf("response mixes %d municipality codes", len(codes))
	}
	for code := range codes {
		if _, ok := domain.MunicipalityByCode(code); !ok {
			fmt.Printf("  Note: geocode %s is not in the selectable municipality table\n", code)
		}
	}
	return p
}

// ── Phase 4: Mesh join ──
// Validates that snapshot municipalities have geometry.

func validateMeshJoin(fc *geojson.FeatureCollection, snapshot domain.Snapshot, metric chart.Metric) *phase {
	p := &phase{name: "Phase 4: Mesh Join (" + string(metric) + ")"}

	mesh := make(map[string]bool, len(fc.Features))
	for i, f := range fc.Features {
		code := domain.FeatureCode(f)
		if code == "" {
			p.errorf("feature %d: missing %s property", i, domain.MeshCodeProperty)
			continue
		}
		mesh[code] = true
	}

	var missing []string
	for _, r := range snapshot.Records {
		if r.MunicipalityCode != "" && !mesh[r.MunicipalityCode] {
			missing = append(missing, r.MunicipalityCode)
		}
	}
	sort.Strings(missing)
	for _, code := range missing {
		p.errorf("municipality %s has data but no geometry", code)
	}

	m := chart.Choropleth(fc, snapshot, metric)
	switch {
	case m == nil && snapshot.Len() > 0:
		p.errorf("no mesh feature matched the snapshot")
	case m != nil && len(m.Features.Features) != len(fc.Features):
		p.errorf("map has %d features, mesh has %d", len(m.Features.Features), len(fc.Features))
	case m != nil:
		fmt.Printf("  Map: %d of %d features matched, range %.2f..%.2f\n", m.Matched, len(fc.Features), m.Min, m.Max)
	}
	return p
}

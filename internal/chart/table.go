package chart

import (
	"github.com/couchcryptid/arbovirus-dashboard/internal/domain"
)

// DetailRow is one week of a municipality's detail table. Missing values
// are rendered as zero.
type DetailRow struct {
	WeekStart      string  `json:"week_start"`
	EpiWeek        int     `json:"epi_week"`
	CasesEstimated float64 `json:"cases_estimated"`
	CasesReported  float64 `json:"cases_reported"`
	Incidence      float64 `json:"incidence_per_100k"`
	Rt             float64 `json:"rt"`
	AlertLevel     int     `json:"alert_level"`
	AlertName      string  `json:"alert_name"`
	Population     float64 `json:"population"`
	Receptivity    float64 `json:"receptivity"`
	Transmission   float64 `json:"transmission"`
	TempMed        float64 `json:"temp_med"`
	HumidityMed    float64 `json:"humidity_med"`
}

// DetailTable renders records in order, zero-filling missing values.
func DetailTable(records []domain.Record) []DetailRow {
	if len(records) == 0 {
		return nil
	}
	rows := make([]DetailRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, DetailRow{
			WeekStart:      formatDate(r),
			EpiWeek:        r.EpiWeek,
			CasesEstimated: r.CasesEstimated.OrZero(),
			CasesReported:  r.CasesReported.OrZero(),
			Incidence:      r.IncidencePer100k.OrZero(),
			Rt:             r.ReproductionNumber.OrZero(),
			AlertLevel:     int(r.AlertLevel),
			AlertName:      r.AlertLevel.Name(),
			Population:     r.Population.OrZero(),
			Receptivity:    r.Receptivity.OrZero(),
			Transmission:   r.Transmission.OrZero(),
			TempMed:        r.TempMed.OrZero(),
			HumidityMed:    r.HumidityMed.OrZero(),
		})
	}
	return rows
}

// MunicipalityRow is one municipality of the state view's latest-week table.
type MunicipalityRow struct {
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	WeekStart      string  `json:"week_start"`
	CasesEstimated float64 `json:"cases_estimated"`
	CasesReported  float64 `json:"cases_reported"`
	Incidence      float64 `json:"incidence_per_100k"`
	Rt             float64 `json:"rt"`
	AlertLevel     int     `json:"alert_level"`
	AlertName      string  `json:"alert_name"`
	AlertColor     string  `json:"alert_color"`
}

// MunicipalityTable renders one row per snapshot municipality.
func MunicipalityTable(s domain.Snapshot) []MunicipalityRow {
	if s.Len() == 0 {
		return nil
	}
	rows := make([]MunicipalityRow, 0, s.Len())
	for _, r := range s.Records {
		rows = append(rows, MunicipalityRow{
			Code:           r.MunicipalityCode,
			Name:           municipalityName(r),
			WeekStart:      formatDate(r),
			CasesEstimated: r.CasesEstimated.OrZero(),
			CasesReported:  r.CasesReported.OrZero(),
			Incidence:      r.IncidencePer100k.OrZero(),
			Rt:             r.ReproductionNumber.OrZero(),
			AlertLevel:     int(r.AlertLevel),
			AlertName:      r.AlertLevel.Name(),
			AlertColor:     r.AlertLevel.Color(),
		})
	}
	return rows
}

func formatDate(r domain.Record) string {
	if !r.HasDate() {
		return ""
	}
	return r.WeekStart.Format(dateLayout)
}

// municipalityName prefers the upstream name and falls back to the static
// table.
func municipalityName(r domain.Record) string {
	if r.MunicipalityName != "" {
		return r.MunicipalityName
	}
	if m, ok := domain.MunicipalityByCode(r.MunicipalityCode); ok {
		return m.Name
	}
	return ""
}

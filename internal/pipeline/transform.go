package pipeline

import (
	"github.com/couchcryptid/arbovirus-dashboard/internal/domain"
)

// processRows converts upstream rows into the processed record table.
func processRows(rows []domain.RawRecord) []domain.Record {
	return domain.Process(domain.ParseRecords(rows))
}

// processMunicipalityRows is processRows for the single-municipality
// endpoint, whose rows omit the municipality columns. The requested
// municipality is attached before processing so deduplication keys on it.
func processMunicipalityRows(rows []domain.RawRecord, m domain.Municipality) []domain.Record {
	records := domain.ParseRecords(rows)
	for i := range records {
		if records[i].MunicipalityCode == "" {
			records[i].MunicipalityCode = m.Code
		}
		if records[i].MunicipalityName == "" {
			records[i].MunicipalityName = m.Name
		}
	}
	return domain.Process(records)
}

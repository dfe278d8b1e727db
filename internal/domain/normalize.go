package domain

import (
	"bytes"
	"encoding/json"
)

// Normalize converts an upstream JSON body into rows.
//
// A JSON array yields one row per object element; non-object elements are
// skipped. A single JSON object is a one-row table. Anything else (null,
// scalars, malformed JSON, empty input) is an empty table, never an error.
func Normalize(data []byte) []RawRecord {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			return nil
		}
		rows := make([]RawRecord, 0, len(elems))
		for _, e := range elems {
			if row, ok := decodeObject(e); ok {
				rows = append(rows, row)
			}
		}
		return rows
	case '{':
		if row, ok := decodeObject(data); ok {
			return []RawRecord{row}
		}
	}
	return nil
}

func decodeObject(data json.RawMessage) (RawRecord, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, false
	}
	var row RawRecord
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, false
	}
	return row, true
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Run("array of objects", func(t *testing.T) {
		rows := Normalize([]byte(`[{"casos": 1}, {"casos": 2}]`))
		require.Len(t, rows, 2)
		assert.JSONEq(t, `1`, string(rows[0]["casos"]))
		assert.JSONEq(t, `2`, string(rows[1]["casos"]))
	})

	t.Run("single object", func(t *testing.T) {
		rows := Normalize([]byte(`{"geocode": "5208707", "nivel": 3}`))
		require.Len(t, rows, 1)
		assert.JSONEq(t, `"5208707"`, string(rows[0]["geocode"]))
	})

	t.Run("non-object elements skipped", func(t *testing.T) {
		rows := Normalize([]byte(`[{"casos": 1}, 7, "x", null, [1]]`))
		assert.Len(t, rows, 1)
	})

	t.Run("columns are optional", func(t *testing.T) {
		rows := Normalize([]byte(`[{"casos": 1}, {"Rt": 1.2}]`))
		require.Len(t, rows, 2)
		_, ok := rows[1]["casos"]
		assert.False(t, ok)
	})

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"whitespace", "  \n"},
		{"null", `null`},
		{"scalar number", `42`},
		{"scalar string", `"hello"`},
		{"malformed array", `[{"casos": 1}`},
		{"malformed object", `{"casos":`},
		{"empty array", `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, Normalize([]byte(tt.body)))
		})
	}
}

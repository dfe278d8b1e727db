package domain

import (
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
)

func TestFeatureCode(t *testing.T) {
	tests := []struct {
		name  string
		props geojson.Properties
		want  string
	}{
		{"string", geojson.Properties{"codarea": testGeocodeA}, testGeocodeA},
		{"number", geojson.Properties{"codarea": float64(5208707)}, testGeocodeA},
		{"missing", geojson.Properties{}, ""},
		{"wrong type", geojson.Properties{"codarea": true}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := geojson.NewFeature(nil)
			f.Properties = tt.props
			assert.Equal(t, tt.want, FeatureCode(f))
		})
	}

	assert.Empty(t, FeatureCode(nil))
}

package domain

import (
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// MeshCodeProperty is the mesh feature property holding the IBGE
// municipality code.
const MeshCodeProperty = "codarea"

// FeatureCode returns the municipality code of a mesh feature. IBGE encodes
// codarea as a string; numeric values are accepted too.
func FeatureCode(f *geojson.Feature) string {
	if f == nil {
		return ""
	}
	switch v := f.Properties[MeshCodeProperty].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}

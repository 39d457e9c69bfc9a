package reference

import (
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/dpup/pctdiff/internal/lib/divergence"
)

// ParseGeoJSON reads a FeatureCollection, one section per feature with line geometry
func ParseGeoJSON(data []byte) ([]divergence.Section, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GeoJSON: %w", err)
	}

	var sections []divergence.Section
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}

		lines := flatten(f.Geometry, nil)
		if len(lines) == 0 {
			continue
		}

		sections = append(sections, divergence.Section{
			Name: sectionName(func(field string) string {
				v, ok := f.Properties[field]
				if !ok || v == nil {
					return ""
				}
				return fmt.Sprint(v)
			}),
			Geometry: lines,
		})
	}
	return sections, nil
}

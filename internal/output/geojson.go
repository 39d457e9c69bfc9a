// Package output serializes divergences for people and GIS tools.
package output

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/dpup/pctdiff/internal/lib/divergence"
)

// round1 rounds to one decimal place. Non-finite values have no JSON form and become nil.
func round1(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return math.Round(v*10) / 10
}

// FeatureID derives a stable id from the section name and geometry, so reruns over the same data
// produce the same ids
func FeatureID(d divergence.Divergence) string {
	var buf bytes.Buffer
	buf.WriteString(d.SectionName)
	for _, p := range d.Geometry {
		_ = binary.Write(&buf, binary.LittleEndian, p.Longitude)
		_ = binary.Write(&buf, binary.LittleEndian, p.Latitude)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, buf.Bytes()).String()
}

// FeatureCollection converts divergences into one LineString feature each
func FeatureCollection(divs []divergence.Divergence) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, d := range divs {
		f := geojson.NewFeature(d.Geometry.Orb())
		f.ID = FeatureID(d)
		f.Properties["section_name"] = d.SectionName
		f.Properties["max_distance_m"] = round1(d.MaxDistance)
		f.Properties["mean_distance_m"] = round1(d.MeanDistance)
		f.Properties["length_m"] = round1(d.Length)
		fc.Append(f)
	}
	return fc
}

// WriteGeoJSON writes an indented FeatureCollection
func WriteGeoJSON(w io.Writer, divs []divergence.Divergence) error {
	data, err := FeatureCollection(divs).MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		return fmt.Errorf("failed to format GeoJSON: %w", err)
	}
	pretty.WriteByte('\n')

	if _, err := pretty.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write GeoJSON: %w", err)
	}
	return nil
}

package output

import (
	"fmt"
	"io"

	"github.com/twpayne/go-kml/v2"

	"github.com/dpup/pctdiff/internal/lib/divergence"
)

// describe renders the stats shown in a placemark balloon
func describe(d divergence.Divergence) string {
	return fmt.Sprintf("Length: %.1f m\nMax distance: %.1f m\nMean distance: %.1f m",
		d.Length, d.MaxDistance, d.MeanDistance)
}

// WriteKML writes one Placemark per divergence inside a named Document
func WriteKML(w io.Writer, name string, divs []divergence.Divergence) error {
	children := []kml.Element{kml.Name(name)}
	for _, d := range divs {
		coords := make([]kml.Coordinate, len(d.Geometry))
		for i, p := range d.Geometry {
			coords[i] = kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude}
		}

		children = append(children, kml.Placemark(
			kml.Name(d.SectionName),
			kml.Description(describe(d)),
			kml.LineString(
				kml.Tessellate(true),
				kml.Coordinates(coords...),
			),
		))
	}

	if err := kml.KML(kml.Document(children...)).WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("failed to write KML: %w", err)
	}
	return nil
}

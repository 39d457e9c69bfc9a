// Package reference loads the authoritative trail dataset as named sections.
package reference

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"

	"github.com/dpup/pctdiff/internal/lib/divergence"
	"github.com/dpup/pctdiff/internal/lib/geo"
)

// UnknownSection names features that carry none of the recognised name fields
const UnknownSection = "Unknown"

// ErrUnsupportedFormat is returned for inputs no loader understands, including File Geodatabases.
// Convert those first, e.g. `ogr2ogr -f GeoJSON sections.geojson Full_PCT.gdb`.
var ErrUnsupportedFormat = errors.New("unsupported reference format")

// nameFields are tried in order for a section name
var nameFields = []string{"Section", "SECTION", "Name", "NAME"}

// Load reads the sections in path, choosing a reader by file extension
func Load(path string) ([]divergence.Section, error) {
	lower := strings.ToLower(path)

	switch {
	case strings.HasSuffix(lower, ".gdb"), strings.HasSuffix(lower, ".gdb.zip"):
		return nil, fmt.Errorf("%w: file geodatabase %s", ErrUnsupportedFormat, path)
	case strings.HasSuffix(lower, ".geojson"), strings.HasSuffix(lower, ".json"):
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return ParseGeoJSON(data)
	case strings.HasSuffix(lower, ".shp"):
		return LoadShapefile(path)
	case strings.HasSuffix(lower, ".zip"):
		return LoadZip(path)
	case strings.HasSuffix(lower, ".polyline"), strings.HasSuffix(lower, ".txt"):
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		return ParseEncoded(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// sectionName returns the first non-empty recognised name field
func sectionName(lookup func(field string) string) string {
	for _, field := range nameFields {
		if name := strings.Trim(lookup(field), " \t\r\n\x00"); name != "" {
			return name
		}
	}
	return UnknownSection
}

// flatten collects every line in g, descending into multi-lines and collections.
// Lines with fewer than 2 points are dropped; other geometry types contribute nothing.
func flatten(g orb.Geometry, out []geo.Polyline) []geo.Polyline {
	switch g := g.(type) {
	case orb.LineString:
		if len(g) >= 2 {
			out = append(out, geo.PolylineFromOrb(g))
		}
	case orb.MultiLineString:
		for _, ls := range g {
			out = flatten(ls, out)
		}
	case orb.Collection:
		for _, child := range g {
			out = flatten(child, out)
		}
	}
	return out
}

package reference

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"

	"github.com/dpup/pctdiff/internal/lib/divergence"
	"github.com/dpup/pctdiff/internal/lib/geo"
)

// LoadShapefile reads polyline shapes from a .shp file and its .dbf attributes
func LoadShapefile(path string) ([]divergence.Section, error) {
	shape, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer shape.Close()

	fieldIndex := make(map[string]int)
	for i, f := range shape.Fields() {
		fieldIndex[f.String()] = i
	}

	var sections []divergence.Section
	for shape.Next() {
		n, s := shape.Shape()

		lines := shapeLines(s)
		if len(lines) == 0 {
			continue
		}

		sections = append(sections, divergence.Section{
			Name: sectionName(func(field string) string {
				i, ok := fieldIndex[field]
				if !ok {
					return ""
				}
				return shape.ReadAttribute(n, i)
			}),
			Geometry: lines,
		})
	}
	if err := shape.Err(); err != nil {
		return nil, fmt.Errorf("failed to read shapefile: %w", err)
	}

	return sections, nil
}

// shapeLines splits a polyline shape into its parts. Non-line shapes yield nothing.
func shapeLines(s shp.Shape) []geo.Polyline {
	var parts []int32
	var points []shp.Point

	switch s := s.(type) {
	case *shp.PolyLine:
		parts, points = s.Parts, s.Points
	case *shp.PolyLineZ:
		parts, points = s.Parts, s.Points
	case *shp.PolyLineM:
		parts, points = s.Parts, s.Points
	default:
		return nil
	}

	var lines []geo.Polyline
	for i, first := range parts {
		last := len(points)
		if i < len(parts)-1 {
			last = int(parts[i+1])
		}
		if int(first) < 0 || int(first) > last || last > len(points) {
			continue
		}

		part := points[first:last]
		if len(part) < 2 {
			continue
		}

		line := make(geo.Polyline, len(part))
		for j, p := range part {
			line[j] = geo.Point{Longitude: p.X, Latitude: p.Y}
		}
		lines = append(lines, line)
	}
	return lines
}

// LoadZip unpacks a zipped shapefile into a temp dir and loads the first .shp found
func LoadZip(path string) ([]divergence.Section, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	tmp, err := os.MkdirTemp("", "pctdiff-reference")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	shpName := ""
	for _, f := range r.File {
		if strings.Contains(strings.ToLower(f.Name), ".gdb/") {
			return nil, fmt.Errorf("%w: file geodatabase inside %s", ErrUnsupportedFormat, path)
		}
		if f.FileInfo().IsDir() {
			continue
		}

		if err := unpackFile(f, tmp); err != nil {
			return nil, err
		}
		if shpName == "" && strings.HasSuffix(strings.ToLower(f.Name), ".shp") {
			shpName = filepath.Base(f.Name)
		}
	}

	if shpName == "" {
		return nil, fmt.Errorf("%w: no shapefile found in %s", ErrUnsupportedFormat, path)
	}

	return LoadShapefile(filepath.Join(tmp, shpName))
}

// unpackFile writes a zip entry into dir under its base name
func unpackFile(f *zip.File, dir string) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s in zip: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, filepath.Base(f.Name)))
	if err != nil {
		return fmt.Errorf("failed to unpack %s: %w", f.Name, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to unpack %s: %w", f.Name, err)
	}
	return nil
}

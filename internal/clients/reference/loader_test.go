package reference

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"

	"github.com/dpup/pctdiff/internal/lib/geo"
)

const sectionsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"Section": "CA Section A", "Name": "ignored"},
      "geometry": {"type": "LineString", "coordinates": [[-116.467, 32.590], [-116.470, 32.600], [-116.475, 32.610]]}
    },
    {
      "type": "Feature",
      "properties": {"NAME": "CA Section B"},
      "geometry": {"type": "MultiLineString", "coordinates": [
        [[-116.50, 32.70], [-116.51, 32.71]],
        [[-116.52, 32.72]],
        [[-116.53, 32.73], [-116.54, 32.74]]
      ]}
    },
    {
      "type": "Feature",
      "properties": {"Section": ""},
      "geometry": {"type": "GeometryCollection", "geometries": [
        {"type": "Point", "coordinates": [-116.6, 32.8]},
        {"type": "LineString", "coordinates": [[-116.60, 32.80], [-116.61, 32.81]]},
        {"type": "GeometryCollection", "geometries": [
          {"type": "MultiLineString", "coordinates": [[[-116.62, 32.82], [-116.63, 32.83]]]}
        ]}
      ]}
    },
    {
      "type": "Feature",
      "properties": {"Section": "Trailhead"},
      "geometry": {"type": "Point", "coordinates": [-116.467, 32.590]}
    }
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseGeoJSON(t *testing.T) {
	sections, err := ParseGeoJSON([]byte(sectionsGeoJSON))
	require.NoError(t, err)
	require.Len(t, sections, 3, "Features without lines are skipped")

	assert.Equal(t, "CA Section A", sections[0].Name)
	require.Len(t, sections[0].Geometry, 1)
	assert.Equal(t, geo.Point{Longitude: -116.467, Latitude: 32.590}, sections[0].Geometry[0][0])

	assert.Equal(t, "CA Section B", sections[1].Name)
	assert.Len(t, sections[1].Geometry, 2, "Single point parts are dropped")

	assert.Equal(t, UnknownSection, sections[2].Name)
	assert.Len(t, sections[2].Geometry, 2, "Collections are flattened recursively")
}

func TestParseGeoJSON_Invalid(t *testing.T) {
	_, err := ParseGeoJSON([]byte(`{"type": "FeatureCollection", "features": [`))
	assert.Error(t, err)
}

func TestSectionName(t *testing.T) {
	fields := map[string]string{"SECTION": "upper", "Name": "name"}
	assert.Equal(t, "upper", sectionName(func(f string) string { return fields[f] }))

	fields = map[string]string{"Name": "  padded  "}
	assert.Equal(t, "padded", sectionName(func(f string) string { return fields[f] }))

	assert.Equal(t, UnknownSection, sectionName(func(string) string { return "" }))
}

func TestFlatten(t *testing.T) {
	g := orb.Collection{
		orb.LineString{{0, 0}, {1, 1}},
		orb.Point{5, 5},
		orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
		orb.MultiLineString{{{2, 2}, {3, 3}}, {{4, 4}}},
	}

	lines := flatten(g, nil)
	require.Len(t, lines, 2)
	assert.Equal(t, geo.Polyline{{Longitude: 2, Latitude: 2}, {Longitude: 3, Latitude: 3}}, lines[1])
}

func TestParseEncoded(t *testing.T) {
	first := string(polyline.EncodeCoords([][]float64{{32.590, -116.467}, {32.600, -116.470}}))
	second := string(polyline.EncodeCoords([][]float64{{32.610, -116.475}, {32.620, -116.480}}))
	third := string(polyline.EncodeCoords([][]float64{{32.70, -116.50}, {32.71, -116.51}}))

	input := strings.Join([]string{
		"# sections",
		"CA Section A\t" + first,
		"CA Section A\t" + second,
		"",
		third,
	}, "\n")

	sections, err := ParseEncoded(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, sections, 2)

	assert.Equal(t, "CA Section A", sections[0].Name)
	assert.Len(t, sections[0].Geometry, 2)
	assert.InDelta(t, -116.467, sections[0].Geometry[0][0].Longitude, 1e-5)
	assert.InDelta(t, 32.590, sections[0].Geometry[0][0].Latitude, 1e-5)

	assert.Equal(t, UnknownSection, sections[1].Name)
}

func TestLoad_GeoJSONFile(t *testing.T) {
	path := writeFile(t, "sections.geojson", sectionsGeoJSON)

	sections, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, sections, 3)
}

func TestLoad_PolylineFile(t *testing.T) {
	encoded := string(polyline.EncodeCoords([][]float64{{38.5, -120.2}, {40.7, -120.95}, {43.252, -126.453}}))
	path := writeFile(t, "sections.polyline", "Oregon\t"+encoded+"\n")

	sections, err := Load(path)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "Oregon", sections[0].Name)
	assert.Len(t, sections[0].Geometry[0], 3)
}

func TestLoad_Unsupported(t *testing.T) {
	for _, name := range []string{"Full_PCT.gdb.zip", "Full_PCT.gdb", "sections.kml"} {
		_, err := Load(filepath.Join(t.TempDir(), name))
		assert.ErrorIs(t, err, ErrUnsupportedFormat, name)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.geojson"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupportedFormat)
}

// writeShapefile creates a two-record polyline shapefile and returns its .shp path
func writeShapefile(t *testing.T, dir string) string {
	path := filepath.Join(dir, "sections.shp")

	writer, err := shp.Create(path, shp.POLYLINE)
	require.NoError(t, err)

	require.NoError(t, writer.SetFields([]shp.Field{
		shp.StringField("Section", 40),
	}))

	row := writer.Write(shp.NewPolyLine([][]shp.Point{
		{{X: -116.467, Y: 32.590}, {X: -116.470, Y: 32.600}},
		{{X: -116.480, Y: 32.610}, {X: -116.490, Y: 32.620}, {X: -116.500, Y: 32.630}},
	}))
	require.NoError(t, writer.WriteAttribute(int(row), 0, "CA Section A"))

	row = writer.Write(shp.NewPolyLine([][]shp.Point{
		{{X: -120.0, Y: 38.0}, {X: -120.1, Y: 38.1}},
	}))
	require.NoError(t, writer.WriteAttribute(int(row), 0, ""))

	writer.Close()

	// The writer names the attribute file "<base>dbf"
	base := strings.TrimSuffix(path, ".shp")
	require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	require.FileExists(t, base+".dbf")
	return path
}

func TestLoadShapefile(t *testing.T) {
	path := writeShapefile(t, t.TempDir())

	sections, err := Load(path)
	require.NoError(t, err)
	require.Len(t, sections, 2)

	assert.Equal(t, "CA Section A", sections[0].Name)
	require.Len(t, sections[0].Geometry, 2, "Each shape part becomes a polyline")
	assert.Len(t, sections[0].Geometry[1], 3)
	assert.Equal(t, geo.Point{Longitude: -116.467, Latitude: 32.590}, sections[0].Geometry[0][0])

	assert.Equal(t, UnknownSection, sections[1].Name)
}

func TestLoadZip(t *testing.T) {
	shpPath := writeShapefile(t, t.TempDir())
	base := strings.TrimSuffix(shpPath, ".shp")

	zipPath := filepath.Join(t.TempDir(), "pcta.zip")
	out, err := os.Create(zipPath)
	require.NoError(t, err)

	zw := zip.NewWriter(out)
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		w, err := zw.Create("pcta/sections" + ext)
		require.NoError(t, err)

		in, err := os.Open(base + ext)
		require.NoError(t, err)
		_, err = io.Copy(w, in)
		in.Close()
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())

	sections, err := Load(zipPath)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "CA Section A", sections[0].Name)
}

func TestLoadZip_Geodatabase(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "pcta.zip")
	out, err := os.Create(zipPath)
	require.NoError(t, err)

	zw := zip.NewWriter(out)
	w, err := zw.Create("Full_PCT.gdb/a00000001.gdbtable")
	require.NoError(t, err)
	_, err = w.Write([]byte("table"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())

	_, err = Load(zipPath)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

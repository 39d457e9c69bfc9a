package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// horizontalLine builds n points spaced spacing degrees apart along a parallel
func horizontalLine(startLon, lat float64, n int, spacing float64) Polyline {
	line := make(Polyline, n)
	for i := range line {
		line[i] = Point{Longitude: startLon + float64(i)*spacing, Latitude: lat}
	}
	return line
}

func TestDistance(t *testing.T) {
	// Highway 4: Angels Camp to Murphys
	angelsCamp := Point{Latitude: 38.0675, Longitude: -120.5436}
	murphys := Point{Latitude: 38.1391, Longitude: -120.4561}

	distance := Distance(angelsCamp, murphys)
	assert.InDelta(t, 11058, distance, 100, "Distance should be approximately 11.0km")

	assert.Equal(t, distance, Distance(murphys, angelsCamp), "Distance should be symmetric")
	assert.Equal(t, 0.0, Distance(murphys, murphys), "Distance from point to itself should be 0")
}

func TestPointToSegment(t *testing.T) {
	a := Point{Longitude: -118.0, Latitude: 34.0}
	b := Point{Longitude: -117.99, Latitude: 34.0}

	// On the segment
	mid := Point{Longitude: -117.995, Latitude: 34.0}
	assert.InDelta(t, 0, PointToSegment(mid, a, b), 1e-6)

	// 0.001 degrees of latitude north of the midpoint is ~111m
	north := Point{Longitude: -117.995, Latitude: 34.001}
	assert.InDelta(t, 111.3, PointToSegment(north, a, b), 0.5)

	// Beyond the end the closest point clamps to the endpoint
	beyond := Point{Longitude: -117.98, Latitude: 34.0}
	assert.InDelta(t, Distance(beyond, b), PointToSegment(beyond, a, b), 1e-9)

	before := Point{Longitude: -118.01, Latitude: 34.001}
	assert.InDelta(t, Distance(before, a), PointToSegment(before, a, b), 1e-9)
}

func TestPointToSegment_Degenerate(t *testing.T) {
	a := Point{Longitude: -118.0, Latitude: 34.0}
	p := Point{Longitude: -118.0, Latitude: 34.01}

	distance := PointToSegment(p, a, a)
	assert.Equal(t, Distance(p, a), distance)
	assert.False(t, distance != distance, "Degenerate segment must not produce NaN")
}

func TestPointToPolyline(t *testing.T) {
	line := horizontalLine(-118.0, 34.0, 10, 0.001)

	distance, err := PointToPolyline(Point{Longitude: -117.9955, Latitude: 34.001}, line)
	require.NoError(t, err)
	assert.InDelta(t, 111.3, distance, 0.5)

	distance, err = PointToPolyline(line[3], line)
	require.NoError(t, err)
	assert.InDelta(t, 0, distance, 1e-6)

	_, err = PointToPolyline(line[0], Polyline{})
	assert.Error(t, err, "Should return error for empty polyline")

	distance, err = PointToPolyline(line[0], Polyline{line[1]})
	require.NoError(t, err)
	assert.Equal(t, Distance(line[0], line[1]), distance)
}

func TestLength(t *testing.T) {
	line := horizontalLine(-118.0, 34.0, 11, 0.001)

	var expected float64
	for _, seg := range line.Segments() {
		expected += seg.Length()
	}
	assert.InDelta(t, expected, Length(line), 1e-9)
	assert.InDelta(t, 922.6, Length(line), 1.0, "0.01 degrees of longitude at 34N is ~923m")

	assert.Equal(t, 0.0, Length(Polyline{line[0]}))
	assert.Equal(t, 0.0, Length(nil))
}

func TestSegmentBound(t *testing.T) {
	seg := Segment{
		Start: Point{Longitude: -117.0, Latitude: 35.0},
		End:   Point{Longitude: -118.0, Latitude: 34.0},
	}

	bound := seg.Bound()
	assert.Equal(t, -118.0, bound.Min[0])
	assert.Equal(t, 34.0, bound.Min[1])
	assert.Equal(t, -117.0, bound.Max[0])
	assert.Equal(t, 35.0, bound.Max[1])
}

func TestPolylineSegments(t *testing.T) {
	line := horizontalLine(-118.0, 34.0, 4, 0.001)

	segments := line.Segments()
	require.Len(t, segments, 3)
	assert.Equal(t, line[0], segments[0].Start)
	assert.Equal(t, line[3], segments[2].End)

	assert.Empty(t, Polyline{line[0]}.Segments())
}

func TestOrbRoundTrip(t *testing.T) {
	line := horizontalLine(-118.0, 34.0, 3, 0.001)

	ls := line.Orb()
	require.Len(t, ls, 3)
	assert.Equal(t, -118.0, ls[0][0])
	assert.Equal(t, 34.0, ls[0][1])
	assert.Equal(t, line, PolylineFromOrb(ls))
}

func TestDecodePolyline(t *testing.T) {
	points, err := DecodePolyline("_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.InDelta(t, 38.5, points[0].Latitude, 1e-6)
	assert.InDelta(t, -120.2, points[0].Longitude, 1e-6)
	assert.InDelta(t, 43.252, points[2].Latitude, 1e-6)
	assert.InDelta(t, -126.453, points[2].Longitude, 1e-6)

	_, err = DecodePolyline("")
	assert.Error(t, err, "Should return error for empty polyline")
}

func TestIsValidCoordinate(t *testing.T) {
	assert.True(t, IsValidCoordinate(Point{Longitude: -120.5436, Latitude: 38.0675}))
	assert.True(t, IsValidCoordinate(Point{Longitude: 180, Latitude: -90}))
	assert.False(t, IsValidCoordinate(Point{Longitude: -300, Latitude: 200}))
}

func TestSample(t *testing.T) {
	line := horizontalLine(-118.0, 34.0, 50, 0.001)

	samples := Sample(line, 25.0)
	require.Greater(t, len(samples), 2, "Should produce multiple samples")
	assert.Equal(t, line[0], samples[0], "First sample should be first coord")
	assert.Equal(t, line[len(line)-1], samples[len(samples)-1], "Last sample should be last coord")

	// Every gap except the final partial one is one interval long
	for i := 1; i < len(samples)-1; i++ {
		assert.InDelta(t, 25.0, Distance(samples[i-1], samples[i]), 0.05, "gap %d", i)
	}

	// ~4.5km at 25m spacing
	expected := int(Length(line) / 25.0)
	assert.InDelta(t, expected+2, len(samples), 1)
}

func TestSample_ShortPolylines(t *testing.T) {
	assert.Empty(t, Sample(nil, 25.0))

	single := Polyline{{Longitude: -118.0, Latitude: 34.0}}
	assert.Equal(t, single, Sample(single, 25.0))

	// Shorter than one interval: just the two ends
	short := Polyline{{Longitude: -118.0, Latitude: 34.0}, {Longitude: -118.0001, Latitude: 34.0}}
	assert.Equal(t, short, Sample(short, 25.0))
}

func TestSample_SkipsZeroLengthSegments(t *testing.T) {
	line := Polyline{
		{Longitude: -118.0, Latitude: 34.0},
		{Longitude: -117.9997, Latitude: 34.0},
		{Longitude: -117.9997, Latitude: 34.0},
		{Longitude: -117.999, Latitude: 34.0},
	}

	withDuplicate := Sample(line, 10.0)
	withoutDuplicate := Sample(Polyline{line[0], line[1], line[3]}, 10.0)

	assert.Equal(t, withoutDuplicate, withDuplicate, "Duplicate vertex must not reset the spacing")
}

func TestSample_LastVertexOnce(t *testing.T) {
	// Exactly 4 intervals long in latitude, so the walk lands near the final vertex
	line := Polyline{{Longitude: -118.0, Latitude: 34.0}, {Longitude: -118.0, Latitude: 34.001}}
	samples := Sample(line, Length(line)/4)

	last := samples[len(samples)-1]
	assert.Equal(t, line[1], last)
	assert.NotEqual(t, samples[len(samples)-2], last, "Last vertex must appear exactly once")
}

package geo

import (
	"errors"
	"math"

	orbgeo "github.com/paulmach/orb/geo"
	"github.com/twpayne/go-polyline"
)

// DegenerateLength is the length in meters below which a segment is treated as a single point
const DegenerateLength = 1e-10

// Distance calculates great-circle distance between two points in meters using the Haversine formula
func Distance(p1, p2 Point) float64 {
	// If points are the same, distance is 0
	if p1 == p2 {
		return 0
	}
	return orbgeo.DistanceHaversine(p1.Orb(), p2.Orb())
}

// PointToSegment calculates the great-circle distance from a point to the closest point of a segment.
//
// The closest point is found by projecting in longitude/latitude space, which is only accurate for
// short segments (sub-kilometer). The returned distance itself is always evaluated on the sphere.
func PointToSegment(point, segmentStart, segmentEnd Point) float64 {
	if Distance(segmentStart, segmentEnd) < DegenerateLength {
		return Distance(point, segmentStart)
	}
	return Distance(point, ClosestPointOnSegment(point, segmentStart, segmentEnd))
}

// ClosestPointOnSegment finds the closest point on a segment using planar parametric projection
func ClosestPointOnSegment(point, segmentStart, segmentEnd Point) Point {
	dx := segmentEnd.Longitude - segmentStart.Longitude
	dy := segmentEnd.Latitude - segmentStart.Latitude

	denom := dx*dx + dy*dy
	if denom == 0 {
		return segmentStart
	}

	t := ((point.Longitude-segmentStart.Longitude)*dx + (point.Latitude-segmentStart.Latitude)*dy) / denom
	t = math.Max(0, math.Min(1, t))

	return Interpolate(segmentStart, segmentEnd, t)
}

// PointToPolyline calculates minimum distance from point to polyline by scanning every segment
func PointToPolyline(point Point, line Polyline) (float64, error) {
	if len(line) == 0 {
		return 0, errors.New("polyline has no points")
	}

	if len(line) == 1 {
		// Single point polyline - return point to point distance
		return Distance(point, line[0]), nil
	}

	minDistance := math.Inf(1)
	for i := 0; i < len(line)-1; i++ {
		distance := PointToSegment(point, line[i], line[i+1])
		if distance < minDistance {
			minDistance = distance
		}
	}

	return minDistance, nil
}

// Length returns the great-circle length of a polyline in meters
func Length(line Polyline) float64 {
	total := 0.0
	for i := 0; i < len(line)-1; i++ {
		total += Distance(line[i], line[i+1])
	}
	return total
}

// Interpolate calculates a point along the straight line between two points in coordinate space.
// t=0 returns start, t=1 returns end, t=0.5 returns midpoint
func Interpolate(start, end Point, t float64) Point {
	return Point{
		Longitude: start.Longitude + t*(end.Longitude-start.Longitude),
		Latitude:  start.Latitude + t*(end.Latitude-start.Latitude),
	}
}

// DecodePolyline decodes a Google encoded polyline string to a point sequence
func DecodePolyline(encoded string) (Polyline, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	coords, rest, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, errors.New("failed to decode polyline: " + err.Error())
	}
	if len(rest) > 0 {
		return nil, errors.New("failed to decode polyline: trailing data")
	}

	points := make(Polyline, len(coords))
	for i, coord := range coords {
		// Encoded polylines store latitude first
		points[i] = Point{Latitude: coord[0], Longitude: coord[1]}

		if !IsValidCoordinate(points[i]) {
			return nil, errors.New("decoded polyline contains invalid coordinates")
		}
	}

	return points, nil
}

// IsValidCoordinate validates latitude and longitude values
func IsValidCoordinate(point Point) bool {
	return point.Latitude >= -90 && point.Latitude <= 90 &&
		point.Longitude >= -180 && point.Longitude <= 180
}

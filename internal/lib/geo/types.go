package geo

import "github.com/paulmach/orb"

// Point represents a geographic coordinate in degrees
type Point struct {
	Longitude float64 `json:"lng"`
	Latitude  float64 `json:"lat"`
}

// Segment is an ordered pair of points, the smallest unit stored in a spatial index
type Segment struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Polyline is an ordered sequence of points. Fewer than two points has zero length.
type Polyline []Point

// PointFromOrb converts an orb point ([lon, lat]) into a Point
func PointFromOrb(p orb.Point) Point {
	return Point{Longitude: p[0], Latitude: p[1]}
}

// Orb returns the point as an orb.Point
func (p Point) Orb() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// Bound returns the planar bounding box of the segment in coordinate space
func (s Segment) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{min(s.Start.Longitude, s.End.Longitude), min(s.Start.Latitude, s.End.Latitude)},
		Max: orb.Point{max(s.Start.Longitude, s.End.Longitude), max(s.Start.Latitude, s.End.Latitude)},
	}
}

// Length returns the great-circle length of the segment in meters
func (s Segment) Length() float64 {
	return Distance(s.Start, s.End)
}

// PolylineFromOrb converts an orb line string into a Polyline
func PolylineFromOrb(ls orb.LineString) Polyline {
	line := make(Polyline, len(ls))
	for i, p := range ls {
		line[i] = PointFromOrb(p)
	}
	return line
}

// Orb returns the polyline as an orb.LineString
func (l Polyline) Orb() orb.LineString {
	ls := make(orb.LineString, len(l))
	for i, p := range l {
		ls[i] = p.Orb()
	}
	return ls
}

// Segments returns the consecutive segments of the polyline
func (l Polyline) Segments() []Segment {
	if len(l) < 2 {
		return nil
	}
	segments := make([]Segment, 0, len(l)-1)
	for i := 0; i < len(l)-1; i++ {
		segments = append(segments, Segment{Start: l[i], End: l[i+1]})
	}
	return segments
}

package spatial

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/dpup/pctdiff/internal/lib/geo"
)

// orderKey ranks candidates during a search. It is the square of a distance in meters and is only
// meaningful for comparison; never report it as a distance.
type orderKey float64

func keyOf(meters float64) orderKey {
	return orderKey(meters * meters)
}

// boxLowerBound returns a distance in meters no greater than the great-circle distance from the
// point to anything inside the box.
//
// The haversine term grows with the latitude gap, the longitude gap and the cosine of the far
// latitude, so using the smallest gaps and the smallest cosine found in the box bounds it from below.
func boxLowerBound(point geo.Point, bound orb.Bound) float64 {
	latGap := gap(point.Latitude, bound.Min[1], bound.Max[1])
	lonGap := gap(point.Longitude, bound.Min[0], bound.Max[0])
	if lonGap > 180 {
		lonGap = 360 - lonGap
	}
	if latGap == 0 && lonGap == 0 {
		return 0
	}

	cosBox := math.Min(math.Cos(radians(bound.Min[1])), math.Cos(radians(bound.Max[1])))
	cosPoint := math.Cos(radians(point.Latitude))

	sinLat := math.Sin(radians(latGap) / 2)
	sinLon := math.Sin(radians(lonGap) / 2)
	a := sinLat*sinLat + cosPoint*math.Max(cosBox, 0)*sinLon*sinLon

	return 2 * orb.EarthRadius * math.Asin(math.Sqrt(math.Min(1, a)))
}

// gap is the distance from v to the closed interval [lo, hi], zero when inside
func gap(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo - v
	case v > hi:
		return v - hi
	default:
		return 0
	}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

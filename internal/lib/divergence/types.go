package divergence

import (
	"errors"
	"fmt"
	"math"

	"github.com/dpup/pctdiff/internal/lib/geo"
)

// ErrInvalidParams is returned by Params.Validate
var ErrInvalidParams = errors.New("invalid divergence parameters")

// NearestIndex answers nearest-segment distance queries over the comparison dataset.
// NearestDistance must return +Inf when nothing is indexed and must be safe for concurrent use.
type NearestIndex interface {
	NearestDistance(point geo.Point) float64
}

// Section is one named stretch of the reference trail, possibly made of several disjoint polylines
type Section struct {
	Name     string         `json:"name"`
	Geometry []geo.Polyline `json:"geometry"`
}

// Sample is a sampled reference point and its distance to the comparison dataset
type Sample struct {
	Point    geo.Point
	Distance float64 // meters, +Inf when the index is empty
}

// Divergence is a contiguous stretch of a section that stays farther than the threshold from the
// comparison dataset for at least the minimum length
type Divergence struct {
	SectionName  string       `json:"section_name"`
	Geometry     geo.Polyline `json:"geometry"`
	MaxDistance  float64      `json:"max_distance_m"`
	MeanDistance float64      `json:"mean_distance_m"`
	Length       float64      `json:"length_m"`
}

// Params controls detection. All values are in meters.
type Params struct {
	Threshold      float64 `json:"threshold"`       // distance above which a sample is divergent
	MinLength      float64 `json:"min_length"`      // shortest run that is reported
	SampleInterval float64 `json:"sample_interval"` // spacing of samples along reference lines
}

// DefaultParams returns the parameters used for the PCT comparison
func DefaultParams() Params {
	return Params{
		Threshold:      10,
		MinLength:      500,
		SampleInterval: 25,
	}
}

// Validate checks that the parameters describe a meaningful run
func (p Params) Validate() error {
	switch {
	case math.IsNaN(p.Threshold) || p.Threshold < 0:
		return fmt.Errorf("%w: threshold must be >= 0, got %v", ErrInvalidParams, p.Threshold)
	case math.IsNaN(p.MinLength) || p.MinLength < 0:
		return fmt.Errorf("%w: min length must be >= 0, got %v", ErrInvalidParams, p.MinLength)
	case math.IsNaN(p.SampleInterval) || math.IsInf(p.SampleInterval, 0) || p.SampleInterval <= 0:
		return fmt.Errorf("%w: sample interval must be > 0, got %v", ErrInvalidParams, p.SampleInterval)
	}
	return nil
}

package divergence

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/dpup/pctdiff/internal/lib/geo"
)

// minChunk keeps tiny polylines from being split across goroutines
const minChunk = 256

// runState is the scanner state: outside a divergent run, or inside one that began at start
type runState struct {
	inside bool
	start  int
}

// DetectPolyline samples one reference polyline and returns its divergent runs
func DetectPolyline(sectionName string, line geo.Polyline, index NearestIndex, params Params) []Divergence {
	divergences, _ := detectLine(sectionName, line, index, params, runtime.GOMAXPROCS(0))
	return divergences
}

// detectLine is DetectPolyline measuring on at most parallel goroutines. It also returns the number
// of samples taken.
func detectLine(sectionName string, line geo.Polyline, index NearestIndex, params Params, parallel int) ([]Divergence, int) {
	if len(line) < 2 {
		return nil, 0
	}
	points := geo.Sample(line, params.SampleInterval)
	return Detect(sectionName, measure(points, index, parallel), params), len(points)
}

// Measure computes the nearest distance of every point. Points are measured in parallel chunks but
// the result keeps the input order.
func Measure(points geo.Polyline, index NearestIndex) []Sample {
	return measure(points, index, runtime.GOMAXPROCS(0))
}

func measure(points geo.Polyline, index NearestIndex, parallel int) []Sample {
	samples := make([]Sample, len(points))
	if len(points) == 0 {
		return samples
	}

	parallel = max(parallel, 1)
	chunk := max(minChunk, (len(points)+parallel-1)/parallel)

	var g errgroup.Group
	g.SetLimit(parallel)
	for start := 0; start < len(points); start += chunk {
		end := min(start+chunk, len(points))
		g.Go(func() error {
			for i := start; i < end; i++ {
				samples[i] = Sample{Point: points[i], Distance: index.NearestDistance(points[i])}
			}
			return nil
		})
	}
	_ = g.Wait()

	return samples
}

// Detect scans samples in order and emits one Divergence per maximal run of samples farther than
// the threshold whose length reaches the minimum. The scan runs one step past the last sample so a
// run still open at the end is closed.
func Detect(sectionName string, samples []Sample, params Params) []Divergence {
	var divergences []Divergence
	var state runState

	for i := 0; i <= len(samples); i++ {
		divergent := i < len(samples) && samples[i].Distance > params.Threshold

		switch {
		case divergent && !state.inside:
			state = runState{inside: true, start: i}
		case !divergent && state.inside:
			if d, ok := closeRun(sectionName, samples[state.start:i], params.MinLength); ok {
				divergences = append(divergences, d)
			}
			state = runState{}
		}
	}

	return divergences
}

// closeRun builds the record for a finished run, or reports false when it is too short
func closeRun(sectionName string, run []Sample, minLength float64) (Divergence, bool) {
	line := make(geo.Polyline, len(run))
	for i, s := range run {
		line[i] = s.Point
	}

	length := geo.Length(line)
	if length < minLength {
		return Divergence{}, false
	}

	maxDistance := 0.0
	sum := 0.0
	for _, s := range run {
		maxDistance = math.Max(maxDistance, s.Distance)
		sum += s.Distance
	}

	return Divergence{
		SectionName:  sectionName,
		Geometry:     line,
		MaxDistance:  maxDistance,
		MeanDistance: sum / float64(len(run)),
		Length:       length,
	}, true
}

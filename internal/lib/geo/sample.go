package geo

// Sample walks a polyline and returns points spaced roughly interval meters apart along it.
//
// The first and last vertices are always included, the last exactly once. Intermediate samples are
// interpolated linearly in coordinate space while the spacing is accounted for with great-circle
// segment lengths. Zero-length segments are skipped without resetting the distance still owed.
// Polylines with fewer than two points are returned unchanged.
func Sample(line Polyline, interval float64) Polyline {
	if len(line) < 2 {
		return append(Polyline(nil), line...)
	}

	samples := Polyline{line[0]}

	// A non-positive interval would never advance; only the vertices' ends are kept.
	if interval > 0 {
		remaining := interval
		for i := 0; i < len(line)-1; i++ {
			start, end := line[i], line[i+1]
			segmentLength := Distance(start, end)
			if segmentLength < DegenerateLength {
				continue
			}

			offset := remaining
			for offset <= segmentLength {
				samples = append(samples, Interpolate(start, end, offset/segmentLength))
				offset += interval
			}
			remaining = offset - segmentLength
		}
	}

	if last := line[len(line)-1]; samples[len(samples)-1] != last {
		samples = append(samples, last)
	}

	return samples
}

package geom

// Smooth applies one relaxation step to the interior points: each moves by
// intensity towards the midpoint of its two original neighbours.
// intensity 0 leaves the path unchanged and intensity 1 replaces each interior
// point with that midpoint. Values outside [0, 1] are clamped and NaN counts
// as 0.
//
// The first and last points never move. Paths shorter than three points are
// returned unchanged. Repeated smoothing is up to the caller.
func Smooth(points []Point, intensity float64) []Point {
	out := clone(points)
	if len(points) < 3 {
		return out
	}
	if !(intensity > 0) { // also NaN
		return out
	}
	if intensity > 1 {
		intensity = 1
	}

	for i := 1; i < len(points)-1; i++ {
		prev, curr, next := points[i-1], points[i], points[i+1]
		out[i].X = curr.X + intensity*((prev.X+next.X)/2-curr.X)
		out[i].Y = curr.Y + intensity*((prev.Y+next.Y)/2-curr.Y)
	}
	return out
}

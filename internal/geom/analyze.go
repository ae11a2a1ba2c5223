package geom

import "math"

// Analysis summarises the shape of a path.
type Analysis struct {
	// Length is the polyline length rounded to the nearest unit.
	Length float64 `json:"length"`

	// Complexity is the total absolute turning angle in radians, rounded to
	// two decimals. A straight line has complexity 0, a right angle 1.57.
	Complexity float64 `json:"complexity"`

	PointCount int    `json:"pointCount"`
	Bounds     Bounds `json:"bounds"`
}

// Analyze computes length, complexity and bounds of points. Paths with fewer
// than two points yield the zero Analysis.
//
// Repeated samples form zero-length segments. They have no heading, so they
// add no turn and the next segment is compared with the last real heading.
func Analyze(points []Point) Analysis {
	if len(points) < 2 {
		return Analysis{}
	}

	var length, turn, heading float64
	haveHeading := false
	for i := 1; i < len(points); i++ {
		d := points[i].toVec().Sub(points[i-1].toVec())
		if d.X == 0 && d.Y == 0 {
			continue
		}
		length += d.Length()

		h := math.Atan2(d.Y, d.X)
		if haveHeading {
			turn += math.Abs(normalizeAngle(h - heading))
		}
		heading, haveHeading = h, true
	}

	return Analysis{
		Length:     math.Round(length),
		Complexity: math.Round(turn*100) / 100,
		PointCount: len(points),
		Bounds:     BoundsOf(points),
	}
}

// normalizeAngle maps a to (-π, π].
func normalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

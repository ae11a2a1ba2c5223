package geom

import "math"

// DefaultOnlineTolerance is the path-length excess, in device units, below
// which SimplifyOnline drops a point.
const DefaultOnlineTolerance = 3.0

// Simplify reduces points with a recursive maximum-deviation split
// (Douglas-Peucker). The first and last points are always kept.
//
// tolerance is a linear distance in device units. It is squared internally
// and compared against the squared distance of each point to the current
// chord, so no square root is taken per point. This is not the same scale as
// the tolerance of SimplifyOnline, which measures a linear path-length
// excess; pick the two independently.
//
// Sequences of two points or fewer are returned unchanged. A negative
// tolerance behaves like zero.
func Simplify(points []Point, tolerance float64) []Point {
	if len(points) <= 2 {
		return clone(points)
	}
	if tolerance < 0 {
		tolerance = 0
	}

	last := len(points) - 1
	keep := make([]bool, len(points))
	keep[0] = true
	keep[last] = true
	markSplit(points, 0, last, tolerance*tolerance, keep)

	out := make([]Point, 0, len(points))
	for i, k := range keep {
		if k {
			out = append(out, points[i])
		}
	}
	return out
}

// markSplit flags the points of points[first:last+1] that survive
// simplification.  Marking indices is equivalent to concatenating the left
// and right sub-results with the shared junction point dropped once.
func markSplit(points []Point, first, last int, sqTolerance float64, keep []bool) {
	maxSqDist := sqTolerance
	index := -1

	for i := first + 1; i < last; i++ {
		d := sqSegDist(points[i], points[first], points[last])
		if d > maxSqDist {
			index = i
			maxSqDist = d
		}
	}

	if index < 0 {
		return
	}
	keep[index] = true
	if index-first > 1 {
		markSplit(points, first, index, sqTolerance, keep)
	}
	if last-index > 1 {
		markSplit(points, index, last, sqTolerance, keep)
	}
}

// SimplifyOnline is the cheap single-pass simplifier. Each interior point is
// inspected once against its original neighbours: it is kept when the detour
// through it, |prev p| + |p next|, exceeds the direct distance |prev next| by
// more than tolerance. Endpoints are always kept.
//
// It reacts to local curvature only and does not bound the deviation of the
// result from the input the way Simplify does.
func SimplifyOnline(points []Point, tolerance float64) []Point {
	if len(points) <= 2 {
		return clone(points)
	}

	out := make([]Point, 0, len(points))
	out = append(out, points[0])
	for i := 1; i < len(points)-1; i++ {
		prev, curr, next := points[i-1], points[i], points[i+1]
		d1 := prev.Dist(next)
		d2 := prev.Dist(curr)
		d3 := curr.Dist(next)
		if math.Abs(d2+d3-d1) > tolerance {
			out = append(out, curr)
		}
	}
	out = append(out, points[len(points)-1])
	return out
}

// Package geom holds the stroke geometry routines: simplification, smoothing,
// hit testing and path analysis. Every function is pure and returns a new
// slice; inputs are never modified.
package geom

import "seehuhn.de/go/geom/vec"

// Point is a position in canvas/device space. T is the capture time in
// milliseconds when the point came from live input; the algorithms ignore it.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T float64 `json:"t,omitempty"`
}

// Pt returns a Point without timestamp.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

func (p Point) toVec() vec.Vec2 {
	return vec.Vec2{X: p.X, Y: p.Y}
}

func dot(a, b vec.Vec2) float64 {
	return a.X*b.X + a.Y*b.Y
}

// Equal reports whether p and q have the same coordinates.
func (p Point) Equal(q Point) bool {
	return p.X == q.X && p.Y == q.Y
}

// SqDist returns the squared distance between p and q.
func (p Point) SqDist(q Point) float64 {
	d := p.toVec().Sub(q.toVec())
	return dot(d, d)
}

// Dist returns the distance between p and q.
func (p Point) Dist(q Point) float64 {
	return p.toVec().Sub(q.toVec()).Length()
}

// sqSegDist returns the squared distance from p to the segment a-b.
// If a == b the segment is a single point.
func sqSegDist(p, a, b Point) float64 {
	closest := a.toVec()
	ab := b.toVec().Sub(closest)

	if l2 := dot(ab, ab); l2 != 0 {
		t := dot(p.toVec().Sub(closest), ab) / l2
		if t > 1 {
			closest = b.toVec()
		} else if t > 0 {
			closest = closest.Add(ab.Mul(t))
		}
	}

	d := p.toVec().Sub(closest)
	return dot(d, d)
}

func clone(points []Point) []Point {
	if points == nil {
		return nil
	}
	out := make([]Point, len(points))
	copy(out, points)
	return out
}

package geom

import (
	"encoding/json"

	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
)

// Bounds is an axis-aligned bounding box. BoundsOf sets Empty for a path
// without points; a box around a single point at the origin is a zero Rect
// that is not Empty.
type Bounds struct {
	rect.Rect
	Empty bool
}

type boundsJSON struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// MarshalJSON encodes b as {minX, minY, maxX, maxY}.
func (b Bounds) MarshalJSON() ([]byte, error) {
	return json.Marshal(boundsJSON{MinX: b.LLx, MinY: b.LLy, MaxX: b.URx, MaxY: b.URy})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (b *Bounds) UnmarshalJSON(data []byte) error {
	var w boundsJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*b = Bounds{Rect: rect.Rect{LLx: w.MinX, LLy: w.MinY, URx: w.MaxX, URy: w.MaxY}}
	return nil
}

// BoundsOf returns the bounding box of points.
func BoundsOf(points []Point) Bounds {
	if len(points) == 0 {
		return Bounds{Empty: true}
	}

	first := points[0]
	r := rect.Rect{LLx: first.X, LLy: first.Y, URx: first.X, URy: first.Y}
	for _, p := range points[1:] {
		extend(&r, p.toVec())
	}
	return Bounds{Rect: r}
}

// extend grows r to contain v. ExtendVec takes a zero Rect for "no box yet",
// so a box that is exactly the origin gets the origin added back.
func extend(r *rect.Rect, v vec.Vec2) {
	origin := r.IsZero()
	r.ExtendVec(v)
	if origin {
		r.ExtendVec(vec.Vec2{})
	}
}

// SqDistTo returns the squared distance from p to the nearest point of b.
// Every coordinate of b is a coordinate of some input point, so the result is
// never larger than p.SqDist(q) for any q the box was built from.
func (b Bounds) SqDistTo(p Point) float64 {
	var dx, dy float64
	if p.X < b.LLx {
		dx = b.LLx - p.X
	} else if p.X > b.URx {
		dx = p.X - b.URx
	}
	if p.Y < b.LLy {
		dy = b.LLy - p.Y
	} else if p.Y > b.URy {
		dy = p.Y - b.URy
	}
	return dx*dx + dy*dy
}

// Union returns the smallest box containing both b and o.
func (b Bounds) Union(o Bounds) Bounds {
	if b.Empty {
		return o
	}
	if o.Empty {
		return b
	}
	extend(&b.Rect, vec.Vec2{X: o.LLx, Y: o.LLy})
	extend(&b.Rect, vec.Vec2{X: o.URx, Y: o.URy})
	return b
}

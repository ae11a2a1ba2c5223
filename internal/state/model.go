package state

import (
	"time"

	"LocalInk/internal/geom"
)

// ToolKind names the tool a stroke was drawn with.
type ToolKind string

const (
	ToolPen         ToolKind = "pen"
	ToolHighlighter ToolKind = "highlighter"
)

// Stroke is a recorded freehand ink path on one page. Points are in drawing
// order; the geometry routines never modify them in place.
type Stroke struct {
	ID     string       `json:"id"`
	Page   int          `json:"page"`
	Points []geom.Point `json:"points"`
	Color  string       `json:"color"`
	Width  float64      `json:"width"`
	Tool   ToolKind     `json:"tool"`
	Time   time.Time    `json:"time"`

	// Version changes whenever Points is replaced.
	Version uint64 `json:"version"`
}

// Clone returns a copy of s that shares no memory with it.
func (s Stroke) Clone() Stroke {
	s.Points = append([]geom.Point(nil), s.Points...)
	return s
}

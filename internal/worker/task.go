// Package worker runs the stroke geometry routines behind an asynchronous
// request/response boundary.
//
// A Pool owns a set of worker contexts. Each context handles its requests one
// at a time in arrival order; different contexts run concurrently, so results
// leave the pool in no particular order. Requests carry a caller-assigned id
// that is echoed in the matching Result, and a Dispatcher uses it to pair
// replies with calls.
//
// Payloads travel as JSON bytes in both directions, so a worker never shares
// memory with its caller.
package worker

import (
	"encoding/json"
	"time"

	"LocalInk/internal/geom"
)

// Operation names a request type.
type Operation string

const (
	OpSimplify       Operation = "simplify"
	OpOptimize       Operation = "optimize"
	OpSmooth         Operation = "smooth"
	OpFindHits       Operation = "findHits"
	OpAnalyze        Operation = "analyze"
	OpConnectionTest Operation = "connectionTest"
)

// Request is one unit of work.
type Request struct {
	Operation Operation       `json:"operation"`
	RequestID string          `json:"requestId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Result is the reply to a Request. Exactly one of Result and Error is set.
type Result struct {
	Operation   Operation       `json:"operation"`
	RequestID   string          `json:"requestId"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       *Error          `json:"error,omitempty"`
	CompletedAt time.Time       `json:"completedAt"`
}

// Decode unmarshals the result body into v, or returns the error carried by
// r.
func (r Result) Decode(v any) error {
	if r.Error != nil {
		return r.Error
	}
	if err := json.Unmarshal(r.Result, v); err != nil {
		return InvalidArgument("malformed result for "+string(r.Operation), err)
	}
	return nil
}

// PathPayload is the payload of simplify and optimize. A missing tolerance
// takes the configured default.
type PathPayload struct {
	Points    []geom.Point `json:"points" validate:"required"`
	Tolerance *float64     `json:"tolerance,omitempty" validate:"omitempty,gte=0"`
}

// SmoothPayload is the payload of smooth.
type SmoothPayload struct {
	Points    []geom.Point `json:"points" validate:"required"`
	Intensity *float64     `json:"intensity,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// StrokePoints is the part of a stroke a hit test looks at.
type StrokePoints struct {
	Points []geom.Point `json:"points"`
}

// HitsPayload is the payload of findHits.
type HitsPayload struct {
	Point   *geom.Point    `json:"point" validate:"required"`
	Strokes []StrokePoints `json:"strokes" validate:"required"`
	Radius  *float64       `json:"radius,omitempty" validate:"omitempty,gte=0"`
}

// AnalyzePayload is the payload of analyze.
type AnalyzePayload struct {
	Points []geom.Point `json:"points" validate:"required"`
}

// PathResult is the result of simplify, optimize and smooth.
type PathResult struct {
	Points []geom.Point `json:"points"`
}

// HitsResult is the result of findHits.
type HitsResult struct {
	Indices []int `json:"indices"`
}

// ConnectionResult is the fixed reply to connectionTest.
type ConnectionResult struct {
	Success bool `json:"success"`
}

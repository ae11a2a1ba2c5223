package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"LocalInk/internal/geom"
)

// Transport carries requests to worker contexts and brings results back.
// Both the in-process Pool and a remote connection implement it.
type Transport interface {
	Send(ctx context.Context, req Request) error
	Results() <-chan Result
}

var (
	// ErrTimeout is returned when no result arrived within the request
	// timeout. Unknown operations end this way when the worker drops them.
	ErrTimeout = errors.New("worker request timed out")

	// ErrTransportClosed is returned once the transport's result channel has
	// been closed.
	ErrTransportClosed = errors.New("worker transport closed")
)

// Dispatcher is the caller side of the worker boundary. It assigns request
// ids, waits for the matching results and discards results nobody waits for
// any more. It never assumes results arrive in request order.
type Dispatcher struct {
	transport Transport
	timeout   time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	pending map[string]chan Result
	done    chan struct{}
}

// NewDispatcher starts correlating results from t. timeout bounds every call
// in addition to the caller's context; zero means no extra bound.
func NewDispatcher(t Transport, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		transport: t,
		timeout:   timeout,
		logger:    logger,
		pending:   make(map[string]chan Result),
		done:      make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for res := range d.transport.Results() {
		d.mu.Lock()
		ch, ok := d.pending[res.RequestID]
		delete(d.pending, res.RequestID)
		d.mu.Unlock()

		if !ok {
			d.logger.Debug("[DISPATCH] discarding stale result",
				zap.String("operation", string(res.Operation)),
				zap.String("requestId", res.RequestID))
			continue
		}
		ch <- res
	}
}

// Pending returns the number of calls waiting for a result.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Call sends op with payload and waits for its result. payload may be nil or
// anything that encodes to JSON. A result carrying an error is returned
// together with that *Error.
func (d *Dispatcher) Call(ctx context.Context, op Operation, payload any) (Result, error) {
	var body json.RawMessage
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return Result{}, fmt.Errorf("encode %s payload: %w", op, err)
		}
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	id := uuid.NewString()
	ch := make(chan Result, 1)
	d.mu.Lock()
	d.pending[id] = ch
	d.mu.Unlock()
	defer d.forget(id)

	req := Request{Operation: op, RequestID: id, Payload: body}
	if err := d.transport.Send(ctx, req); err != nil {
		return Result{}, fmt.Errorf("send %s: %w", op, err)
	}

	select {
	case res := <-ch:
		if res.Error != nil {
			return res, res.Error
		}
		return res, nil
	case <-d.done:
		return Result{}, ErrTransportClosed
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, fmt.Errorf("%s %s: %w", op, id, ErrTimeout)
		}
		return Result{}, ctx.Err()
	}
}

func (d *Dispatcher) forget(id string) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

func (d *Dispatcher) callPath(ctx context.Context, op Operation, payload any) ([]geom.Point, error) {
	res, err := d.Call(ctx, op, payload)
	if err != nil {
		return nil, err
	}
	var out PathResult
	if err := res.Decode(&out); err != nil {
		return nil, err
	}
	return out.Points, nil
}

// Ping checks that a worker answers.
func (d *Dispatcher) Ping(ctx context.Context) error {
	res, err := d.Call(ctx, OpConnectionTest, nil)
	if err != nil {
		return err
	}
	var out ConnectionResult
	if err := res.Decode(&out); err != nil {
		return err
	}
	if !out.Success {
		return errors.New("worker reported connection test failure")
	}
	return nil
}

// Simplify runs the recursive simplifier remotely.
func (d *Dispatcher) Simplify(ctx context.Context, points []geom.Point, tolerance float64) ([]geom.Point, error) {
	return d.callPath(ctx, OpSimplify, PathPayload{Points: nonNil(points), Tolerance: &tolerance})
}

// Optimize runs the single-pass simplifier remotely.
func (d *Dispatcher) Optimize(ctx context.Context, points []geom.Point, tolerance float64) ([]geom.Point, error) {
	return d.callPath(ctx, OpOptimize, PathPayload{Points: nonNil(points), Tolerance: &tolerance})
}

// Smooth runs the smoother remotely.
func (d *Dispatcher) Smooth(ctx context.Context, points []geom.Point, intensity float64) ([]geom.Point, error) {
	return d.callPath(ctx, OpSmooth, SmoothPayload{Points: nonNil(points), Intensity: &intensity})
}

// FindHits runs a hit test remotely.
func (d *Dispatcher) FindHits(ctx context.Context, p geom.Point, strokes [][]geom.Point, radius float64) ([]int, error) {
	payload := HitsPayload{
		Point:   &p,
		Strokes: make([]StrokePoints, len(strokes)),
		Radius:  &radius,
	}
	for i, s := range strokes {
		payload.Strokes[i] = StrokePoints{Points: s}
	}

	res, err := d.Call(ctx, OpFindHits, payload)
	if err != nil {
		return nil, err
	}
	var out HitsResult
	if err := res.Decode(&out); err != nil {
		return nil, err
	}
	return out.Indices, nil
}

// Analyze runs the path analyzer remotely.
func (d *Dispatcher) Analyze(ctx context.Context, points []geom.Point) (geom.Analysis, error) {
	res, err := d.Call(ctx, OpAnalyze, AnalyzePayload{Points: nonNil(points)})
	if err != nil {
		return geom.Analysis{}, err
	}
	var out geom.Analysis
	if err := res.Decode(&out); err != nil {
		return geom.Analysis{}, err
	}
	return out, nil
}

// nonNil keeps an empty path from encoding as null, which the worker would
// reject as a missing field.
func nonNil(points []geom.Point) []geom.Point {
	if points == nil {
		return []geom.Point{}
	}
	return points
}

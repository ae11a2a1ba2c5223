package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"LocalInk/internal/geom"
)

// Defaults fill in optional payload fields.
type Defaults struct {
	Tolerance       float64
	OnlineTolerance float64
	Intensity       float64
	Radius          float64
}

// DefaultDefaults match the behaviour of the drawing front end.
var DefaultDefaults = Defaults{
	Tolerance:       1,
	OnlineTolerance: geom.DefaultOnlineTolerance,
	Intensity:       0.5,
	Radius:          10,
}

// HandlerOptions configure a Handler.
type HandlerOptions struct {
	Defaults Defaults

	// DropUnsupported makes unknown operations produce no reply at all.
	DropUnsupported bool

	Metrics *Metrics
	Logger  *zap.Logger
}

type opFunc func(h *Handler, payload json.RawMessage) (result any, in, out int, err error)

var operations = map[Operation]opFunc{
	OpSimplify: (*Handler).simplify,
	OpOptimize: (*Handler).optimize,
	OpSmooth:   (*Handler).smooth,
	OpFindHits: (*Handler).findHits,
	OpAnalyze:  (*Handler).analyze,
}

// Handler turns a Request into a Result by running the matching geometry
// routine. It holds no per-request state and is safe for concurrent use.
type Handler struct {
	defaults        Defaults
	dropUnsupported bool
	validate        *validator.Validate
	metrics         *Metrics
	logger          *zap.Logger
	now             func() time.Time
}

// NewHandler returns a Handler configured by opts.
func NewHandler(opts HandlerOptions) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		defaults:        opts.Defaults,
		dropUnsupported: opts.DropUnsupported,
		validate:        v,
		metrics:         opts.Metrics,
		logger:          logger,
		now:             time.Now,
	}
}

// Handle processes req. The boolean is false when no reply must be sent,
// which only happens for unknown operations with DropUnsupported set.
func (h *Handler) Handle(req Request) (Result, bool) {
	start := h.now()
	res := Result{Operation: req.Operation, RequestID: req.RequestID}

	if req.Operation == OpConnectionTest {
		res.Result = json.RawMessage(`{"success":true}`)
		res.CompletedAt = h.now()
		h.metrics.observe(req.Operation, "ok", 0)
		return res, true
	}

	fn, ok := operations[req.Operation]
	if !ok {
		if h.dropUnsupported {
			h.logger.Debug("[WORKER] dropping unsupported operation",
				zap.String("operation", string(req.Operation)),
				zap.String("requestId", req.RequestID))
			h.metrics.dropped()
			return Result{}, false
		}
		res.Error = UnsupportedOperation(req.Operation)
		res.CompletedAt = h.now()
		h.metrics.observe("unsupported", string(KindUnsupportedOperation), 0)
		return res, true
	}

	body, in, out, err := h.run(fn, req.Payload)
	res.CompletedAt = h.now()
	elapsed := res.CompletedAt.Sub(start)

	if err != nil {
		var we *Error
		if !errors.As(err, &we) {
			we = internalError(err.Error())
		}
		res.Error = we
		h.metrics.observe(req.Operation, string(we.Kind), elapsed)
		h.logger.Debug("[WORKER] request failed",
			zap.String("operation", string(req.Operation)),
			zap.String("requestId", req.RequestID),
			zap.Error(err))
		return res, true
	}

	res.Result = body
	h.metrics.observe(req.Operation, "ok", elapsed)
	h.metrics.points(req.Operation, in, out)
	return res, true
}

// run calls fn and encodes its result. A panic inside a routine becomes an
// Internal error so the worker keeps serving.
func (h *Handler) run(fn opFunc, payload json.RawMessage) (body json.RawMessage, in, out int, err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("[WORKER] panic in operation", zap.Any("panic", r))
			err = internalError(fmt.Sprint(r))
		}
	}()

	result, in, out, err := fn(h, payload)
	if err != nil {
		return nil, 0, 0, err
	}
	body, err = json.Marshal(result)
	if err != nil {
		return nil, 0, 0, internalError("encode result: " + err.Error())
	}
	return body, in, out, nil
}

// decode unmarshals payload into v and validates it.
func (h *Handler) decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return InvalidArgument("missing payload", nil)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return InvalidArgument("malformed payload", err)
	}
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return InvalidArgument(fmt.Sprintf("field %q failed %q", fe.Field(), fe.Tag()), nil)
		}
		return InvalidArgument("invalid payload", err)
	}
	return nil
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func (h *Handler) simplify(payload json.RawMessage) (any, int, int, error) {
	var p PathPayload
	if err := h.decode(payload, &p); err != nil {
		return nil, 0, 0, err
	}
	points := geom.Simplify(p.Points, orDefault(p.Tolerance, h.defaults.Tolerance))
	return PathResult{Points: points}, len(p.Points), len(points), nil
}

func (h *Handler) optimize(payload json.RawMessage) (any, int, int, error) {
	var p PathPayload
	if err := h.decode(payload, &p); err != nil {
		return nil, 0, 0, err
	}
	points := geom.SimplifyOnline(p.Points, orDefault(p.Tolerance, h.defaults.OnlineTolerance))
	return PathResult{Points: points}, len(p.Points), len(points), nil
}

func (h *Handler) smooth(payload json.RawMessage) (any, int, int, error) {
	var p SmoothPayload
	if err := h.decode(payload, &p); err != nil {
		return nil, 0, 0, err
	}
	points := geom.Smooth(p.Points, orDefault(p.Intensity, h.defaults.Intensity))
	return PathResult{Points: points}, len(p.Points), len(points), nil
}

func (h *Handler) findHits(payload json.RawMessage) (any, int, int, error) {
	var p HitsPayload
	if err := h.decode(payload, &p); err != nil {
		return nil, 0, 0, err
	}
	strokes := make([][]geom.Point, len(p.Strokes))
	total := 0
	for i, s := range p.Strokes {
		strokes[i] = s.Points
		total += len(s.Points)
	}
	indices := geom.FindHits(*p.Point, strokes, orDefault(p.Radius, h.defaults.Radius))
	return HitsResult{Indices: indices}, total, 0, nil
}

func (h *Handler) analyze(payload json.RawMessage) (any, int, int, error) {
	var p AnalyzePayload
	if err := h.decode(payload, &p); err != nil {
		return nil, 0, 0, err
	}
	return geom.Analyze(p.Points), len(p.Points), 0, nil
}

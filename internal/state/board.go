package state

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"LocalInk/internal/geom"
)

var (
	// ErrUnknownStroke is returned when no stroke has the given id.
	ErrUnknownStroke = errors.New("unknown stroke")

	// ErrStaleVersion is returned when a result was computed for an older
	// version of a stroke.
	ErrStaleVersion = errors.New("stroke changed since the result was requested")
)

// Board is the annotation state of one document: its strokes in drawing
// order. It is safe for concurrent use.
type Board struct {
	strokes []Stroke
	gen     Generation
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewBoard returns an empty board.
func NewBoard(logger *zap.Logger) *Board {
	return &Board{
		strokes: make([]Stroke, 0),
		logger:  logger,
	}
}

// Add appends a stroke, assigning an id and creation time if missing.
// It returns the stored copy.
func (b *Board) Add(s Stroke) Stroke {
	b.mu.Lock()
	defer b.mu.Unlock()

	s = s.Clone()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Time.IsZero() {
		s.Time = time.Now()
	}
	s.Version = b.gen.Next()
	b.strokes = append(b.strokes, s)

	b.logger.Debug("[BOARD] stroke added",
		zap.String("id", s.ID),
		zap.Int("points", len(s.Points)))
	return s.Clone()
}

// Strokes returns a copy of all strokes in drawing order.
func (b *Board) Strokes() []Stroke {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Stroke, len(b.strokes))
	for i, s := range b.strokes {
		out[i] = s.Clone()
	}
	return out
}

// Get returns a copy of the stroke with the given id.
func (b *Board) Get(id string) (Stroke, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if i := b.indexOf(id); i >= 0 {
		return b.strokes[i].Clone(), true
	}
	return Stroke{}, false
}

// Points returns the point lists of all strokes on the given page, in
// drawing order, together with the matching stroke ids.  This is the input
// shape of a hit test.
func (b *Board) Points(page int) (ids []string, points [][]geom.Point) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.strokes {
		if s.Page != page {
			continue
		}
		ids = append(ids, s.ID)
		points = append(points, append([]geom.Point(nil), s.Points...))
	}
	return ids, points
}

// ReplacePoints swaps in a processed point list for stroke id. version must
// be the stroke version the points were computed from; if the stroke has
// changed since, ErrStaleVersion is returned and nothing happens.
func (b *Board) ReplacePoints(id string, version uint64, points []geom.Point) (Stroke, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexOf(id)
	if i < 0 {
		return Stroke{}, ErrUnknownStroke
	}
	if b.strokes[i].Version != version {
		b.logger.Debug("[BOARD] dropping stale result",
			zap.String("id", id),
			zap.Uint64("have", b.strokes[i].Version),
			zap.Uint64("got", version))
		return Stroke{}, ErrStaleVersion
	}

	b.strokes[i].Points = append([]geom.Point(nil), points...)
	b.strokes[i].Version = b.gen.Next()
	return b.strokes[i].Clone(), nil
}

// Remove deletes the strokes with the given ids and returns how many were
// found.
func (b *Board) Remove(ids ...string) int {
	if len(ids) == 0 {
		return 0
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.strokes[:0]
	removed := 0
	for _, s := range b.strokes {
		if drop[s.ID] {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	for i := len(kept); i < len(b.strokes); i++ {
		b.strokes[i] = Stroke{}
	}
	b.strokes = kept

	if removed > 0 {
		ids := make([]string, 0, len(drop))
		for id := range drop {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		b.logger.Debug("[BOARD] strokes removed", zap.Strings("ids", ids), zap.Int("count", removed))
	}
	return removed
}

// Len returns the number of strokes.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.strokes)
}

func (b *Board) indexOf(id string) int {
	for i := range b.strokes {
		if b.strokes[i].ID == id {
			return i
		}
	}
	return -1
}

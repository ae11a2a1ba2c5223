package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"seehuhn.de/go/geom/rect"

	"LocalInk/internal/geom"
)

func TestFit(t *testing.T) {
	const pageW, pageH = 297.0, 210.0

	tests := []struct {
		name   string
		box    geom.Bounds
		corner geom.Point
		wantX  float64
		wantY  float64
	}{
		{
			name:   "wide box fills the width",
			box:    geom.Bounds{Rect: rect.Rect{LLx: 100, LLy: 100, URx: 367, URy: 110}},
			corner: geom.Pt(367, 100),
			wantX:  pageW - margin,
			wantY:  margin,
		},
		{
			name:   "tall box fills the height",
			box:    geom.Bounds{Rect: rect.Rect{LLx: 0, LLy: 0, URx: 10, URy: 180}},
			corner: geom.Pt(0, 180),
			wantX:  margin,
			wantY:  pageH - margin,
		},
		{
			name:   "horizontal line",
			box:    geom.Bounds{Rect: rect.Rect{LLx: -10, LLy: 5, URx: 257, URy: 5}},
			corner: geom.Pt(257, 5),
			wantX:  pageW - margin,
			wantY:  margin,
		},
		{
			name:   "single point is moved to the margin",
			box:    geom.Bounds{Rect: rect.Rect{LLx: 40, LLy: 40, URx: 40, URy: 40}},
			corner: geom.Pt(40, 40),
			wantX:  margin,
			wantY:  margin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := apply(fit(tt.box, pageW, pageH), tt.corner)
			assert.InDelta(t, tt.wantX, x, 1e-9)
			assert.InDelta(t, tt.wantY, y, 1e-9)
		})
	}
}

func TestFit_Empty(t *testing.T) {
	x, y := apply(fit(geom.BoundsOf(nil), 297, 210), geom.Pt(2, 3))
	assert.Equal(t, margin+2, x)
	assert.Equal(t, margin+3, y)
}

func TestWritePreview(t *testing.T) {
	raw := [][]geom.Point{
		{geom.Pt(0, 0), geom.Pt(5, 0.2), geom.Pt(10, 0), geom.Pt(10, 10)},
		{geom.Pt(30, 30)},
		{},
	}
	processed := [][]geom.Point{
		{geom.Pt(0, 0), geom.Pt(10, 0), geom.Pt(10, 10)},
	}

	var buf bytes.Buffer
	err := WritePreview(&buf, "preview",
		Layer{Name: "raw", Color: Gray, Width: 0.8, Paths: raw},
		Layer{Name: "simplified", Color: Ink, Width: 0.4, Paths: processed},
	)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestWritePreview_NoStrokes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePreview(&buf, "empty"))
	assert.NotZero(t, buf.Len())
}

func TestWritePreviewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, WritePreviewFile(path, "file", Layer{Color: Ink, Width: 0.5, Paths: [][]geom.Point{{geom.Pt(1, 1), geom.Pt(2, 2)}}}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())

	err = WritePreviewFile(filepath.Join(t.TempDir(), "missing", "out.pdf"), "x")
	assert.Error(t, err)
}

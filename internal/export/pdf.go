// Package export renders strokes to a PDF preview so the effect of the
// geometry pipeline can be inspected side by side with the raw input.
package export

import (
	"fmt"
	"io"
	"os"

	"github.com/jung-kurt/gofpdf"
	"seehuhn.de/go/geom/matrix"

	"LocalInk/internal/geom"
)

const margin = 15.0 // mm

// RGB is a draw colour.
type RGB struct{ R, G, B int }

var (
	Gray = RGB{170, 170, 170}
	Ink  = RGB{20, 60, 200}
)

// Layer is a set of paths drawn in one colour and width.
type Layer struct {
	Name  string
	Color RGB
	Width float64 // mm
	Paths [][]geom.Point
}

// fit returns the matrix that maps board coordinates onto the printable
// area of a page, keeping the aspect ratio.
func fit(b geom.Bounds, pageW, pageH float64) matrix.Matrix {
	if b.Empty {
		return matrix.Translate(margin, margin)
	}
	availW, availH := pageW-2*margin, pageH-2*margin

	scale := 1.0
	switch w, h := b.Dx(), b.Dy(); {
	case w > 0 && h > 0:
		scale = min(availW/w, availH/h)
	case w > 0:
		scale = availW / w
	case h > 0:
		scale = availH / h
	}
	return matrix.Matrix{scale, 0, 0, scale, margin - b.LLx*scale, margin - b.LLy*scale}
}

// apply maps p through m, using the [a b c d e f] layout of a PDF matrix.
func apply(m matrix.Matrix, p geom.Point) (float64, float64) {
	return m[0]*p.X + m[2]*p.Y + m[4], m[1]*p.X + m[3]*p.Y + m[5]
}

// WritePreview draws layers in order onto a single A4 landscape page, scaled
// so that everything fits, and writes the document to w.
func WritePreview(w io.Writer, title string, layers ...Layer) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("LocalInk", true)
	pdf.AddPage()
	pdf.SetLineCapStyle("round")
	pdf.SetLineJoinStyle("round")

	box := geom.Bounds{Empty: true}
	for _, l := range layers {
		for _, path := range l.Paths {
			box = box.Union(geom.BoundsOf(path))
		}
	}
	pageW, pageH := pdf.GetPageSize()
	m := fit(box, pageW, pageH)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(90, 90, 90)
	pdf.Text(margin, margin-5, title)

	legendY := pageH - margin + 7
	legendX := margin
	for _, l := range layers {
		pdf.SetDrawColor(l.Color.R, l.Color.G, l.Color.B)
		pdf.SetFillColor(l.Color.R, l.Color.G, l.Color.B)
		pdf.SetLineWidth(l.Width)
		for _, path := range l.Paths {
			drawPath(pdf, m, path, l.Width)
		}
		if l.Name != "" {
			pdf.Rect(legendX, legendY-2.5, 3, 3, "F")
			pdf.Text(legendX+4, legendY, l.Name)
			legendX += 6 + pdf.GetStringWidth(l.Name) + 6
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render preview: %w", err)
	}
	return pdf.Output(w)
}

func drawPath(pdf *gofpdf.Fpdf, m matrix.Matrix, path []geom.Point, width float64) {
	switch len(path) {
	case 0:
		return
	case 1:
		x, y := apply(m, path[0])
		pdf.Circle(x, y, width/2, "F")
		return
	}
	x0, y0 := apply(m, path[0])
	for _, p := range path[1:] {
		x1, y1 := apply(m, p)
		pdf.Line(x0, y0, x1, y1)
		x0, y0 = x1, y1
	}
}

// WritePreviewFile is WritePreview into a newly created file.
func WritePreviewFile(path, title string, layers ...Layer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePreview(f, title, layers...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

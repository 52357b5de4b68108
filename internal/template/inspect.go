package template

import (
	"bytes"
	"fmt"
	"math"

	"github.com/ledongthuc/pdf"
)

// A4Width is used when a page declares no readable MediaBox
const A4Width, A4Height = 595.28, 841.89

// Info describes the first page of a template
type Info struct {
	Pages  int
	Width  float64
	Height float64
}

// Inspect checks data is a readable PDF with at least one page and returns
// the first page dimensions
func Inspect(data []byte) (info *Info, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("template is empty")
	}

	// The reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			info, err = nil, fmt.Errorf("invalid PDF template: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid PDF template: %w", err)
	}

	pages := r.NumPage()
	if pages < 1 {
		return nil, fmt.Errorf("template has no pages")
	}

	w, h := mediaBox(r.Page(1).V)
	return &Info{Pages: pages, Width: w, Height: h}, nil
}

// mediaBox reads the page MediaBox, following inheritance through Parent
func mediaBox(page pdf.Value) (float64, float64) {
	for v, depth := page, 0; !v.IsNull() && depth < 32; v, depth = v.Key("Parent"), depth+1 {
		box := v.Key("MediaBox")
		if box.Kind() != pdf.Array || box.Len() != 4 {
			continue
		}
		w := box.Index(2).Float64() - box.Index(0).Float64()
		h := box.Index(3).Float64() - box.Index(1).Float64()
		if w > 0 && h > 0 {
			return w, h
		}
	}
	return A4Width, A4Height
}

// TextRun is text shown from one starting point, with its baseline origin
// in default user space
type TextRun struct {
	Text  string
	Font  string
	Size  float64
	X     float64
	Y     float64
	Width float64
}

const runTolerance = 0.01

// PageText reads back the text drawn on a page. Consecutive glyphs sharing
// a baseline, a size and a contiguous advance form one run.
func PageText(data []byte, page int) (runs []TextRun, err error) {
	defer func() {
		if r := recover(); r != nil {
			runs, err = nil, fmt.Errorf("invalid PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid PDF: %w", err)
	}
	if page < 1 || page > r.NumPage() {
		return nil, fmt.Errorf("document has no page %d", page)
	}

	for _, t := range r.Page(page).Content().Text {
		if n := len(runs); n > 0 {
			last := &runs[n-1]
			if near(last.Y, t.Y) && near(last.Size, t.FontSize) && last.Font == t.Font && near(last.X+last.Width, t.X) {
				last.Text += t.S
				last.Width += t.W
				continue
			}
		}
		runs = append(runs, TextRun{Text: t.S, Font: t.Font, Size: t.FontSize, X: t.X, Y: t.Y, Width: t.W})
	}
	return runs, nil
}

func near(a, b float64) bool {
	return math.Abs(a-b) < runTolerance
}

package stamper

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/a3tai/attestation-stamper/internal/attestation"
	"github.com/a3tai/attestation-stamper/internal/layout"
	"github.com/a3tai/attestation-stamper/internal/signature"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// TextStamp is one line of text whose baseline starts at (X, Y)
type TextStamp struct {
	Text string
	X    float64
	Y    float64
	Size float64
}

// ImageStamp is the signature drawn in the box (X, Y, Width, Height)
type ImageStamp struct {
	Data         []byte
	Format       string
	SourceWidth  int
	SourceHeight int
	X            float64
	Y            float64
	Width        float64
	Height       float64
}

// Scale returns the factor applied to the source pixels
func (s *ImageStamp) Scale() float64 {
	return s.Width / float64(s.SourceWidth)
}

// Overlay is everything drawn on top of the template page
type Overlay struct {
	Page  int
	Texts []TextStamp
	Marks []TextStamp
	Image *ImageStamp
}

// Plan computes the overlay for rec on layout l. The date and time come from
// now, never from the record. pageWidth is only used by layouts that
// right-align the signature.
//
// A purpose the layout has no mark for yields no mark at all. An empty
// signature yields no image; a malformed one is an error.
func Plan(rec attestation.Record, l *layout.Layout, now time.Time, pageWidth float64) (*Overlay, error) {
	o := &Overlay{Page: 1}

	for _, tp := range l.Fields {
		parts := make([]string, 0, len(tp.Fields))
		for _, f := range tp.Fields {
			parts = append(parts, rec.Value(f))
		}
		text := winAnsi(strings.Join(parts, " "))
		if strings.TrimSpace(text) == "" {
			continue
		}
		o.Texts = append(o.Texts, TextStamp{Text: text, X: tp.X, Y: tp.Y, Size: tp.Size})
	}

	if pt, ok := l.Mark(rec.Purpose); ok {
		o.Marks = append(o.Marks, TextStamp{Text: l.Glyph, X: pt.X, Y: pt.Y, Size: l.MarkSize})
	}

	for _, c := range l.Clock {
		o.Texts = append(o.Texts, TextStamp{Text: now.Format(c.Format), X: c.X, Y: c.Y, Size: c.Size})
	}

	if rec.Signature == "" {
		return o, nil
	}

	img, err := signature.Decode(rec.Signature)
	if err != nil {
		return nil, err
	}

	w := l.Sign.TargetWidth
	h := w * float64(img.Height) / float64(img.Width)
	x := l.Sign.X
	if l.Sign.RightAligned() {
		x = pageWidth - w - l.Sign.RightMargin
	}

	o.Image = &ImageStamp{
		Data:         img.Data,
		Format:       img.Format,
		SourceWidth:  img.Width,
		SourceHeight: img.Height,
		X:            x,
		Y:            l.Sign.Y,
		Width:        w,
		Height:       h,
	}
	return o, nil
}

// Find returns the text stamps whose text equals s, marks included
func (o *Overlay) Find(s string) []TextStamp {
	var out []TextStamp
	for _, group := range [][]TextStamp{o.Texts, o.Marks} {
		for _, t := range group {
			if t.Text == s {
				out = append(out, t)
			}
		}
	}
	return out
}

// String summarizes the overlay without its text content
func (o *Overlay) String() string {
	return fmt.Sprintf("Overlay{Page: %d, Texts: %d, Marks: %d, Image: %t}",
		o.Page, len(o.Texts), len(o.Marks), o.Image != nil)
}

// winAnsi folds text into what the standard PDF fonts can show. Accented
// letters outside Windows-1252 lose their accent, anything else becomes '?'.
func winAnsi(s string) string {
	var b strings.Builder
	for _, r := range s {
		// every stamp is a single line
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			b.WriteByte(' ')
			continue
		}
		if _, ok := charmap.Windows1252.EncodeRune(r); ok {
			b.WriteRune(r)
			continue
		}
		folded := false
		for _, d := range norm.NFD.String(string(r)) {
			if unicode.Is(unicode.Mn, d) {
				continue
			}
			if _, ok := charmap.Windows1252.EncodeRune(d); ok {
				b.WriteRune(d)
				folded = true
			}
		}
		if !folded {
			b.WriteByte('?')
		}
	}
	return b.String()
}

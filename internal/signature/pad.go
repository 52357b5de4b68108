// Package signature captures hand-drawn signatures as strokes and exports
// them as PNG images, the way a browser canvas signature pad does.
package signature

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"golang.org/x/image/vector"
)

const (
	// DefaultWidth and DefaultHeight match the default size of an HTML canvas
	DefaultWidth  = 300
	DefaultHeight = 150

	// DefaultPenWidth is the stroke thickness in pixels
	DefaultPenWidth = 2.5
)

// Point is a pointer position in canvas pixels
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one continuous pen-down movement
type Stroke []Point

// Pad records strokes on a fixed-size drawing surface. A Pad belongs to a
// single form session and is not safe for concurrent use.
type Pad struct {
	width    int
	height   int
	penWidth float64
	strokes  []Stroke
}

// NewPad creates an empty pad. Non-positive dimensions fall back to the
// canvas defaults.
func NewPad(width, height int) *Pad {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Pad{
		width:    width,
		height:   height,
		penWidth: DefaultPenWidth,
	}
}

// Size returns the surface dimensions in pixels
func (p *Pad) Size() (int, int) {
	return p.width, p.height
}

// BeginStroke starts a new stroke at (x, y)
func (p *Pad) BeginStroke(x, y float64) {
	p.strokes = append(p.strokes, Stroke{{X: x, Y: y}})
}

// LineTo extends the current stroke, starting one if none is open
func (p *Pad) LineTo(x, y float64) {
	if len(p.strokes) == 0 {
		p.BeginStroke(x, y)
		return
	}
	last := len(p.strokes) - 1
	p.strokes[last] = append(p.strokes[last], Point{X: x, Y: y})
}

// AddStroke appends a complete stroke. Empty strokes are ignored.
func (p *Pad) AddStroke(points ...Point) {
	if len(points) == 0 {
		return
	}
	s := make(Stroke, len(points))
	copy(s, points)
	p.strokes = append(p.strokes, s)
}

// AddStrokes appends several complete strokes
func (p *Pad) AddStrokes(strokes []Stroke) {
	for _, s := range strokes {
		p.AddStroke(s...)
	}
}

// Clear discards every stroke
func (p *Pad) Clear() {
	p.strokes = nil
}

// IsEmpty reports whether nothing has been drawn since creation or the last Clear
func (p *Pad) IsEmpty() bool {
	return len(p.strokes) == 0
}

// Strokes returns a copy of the recorded strokes
func (p *Pad) Strokes() []Stroke {
	out := make([]Stroke, len(p.strokes))
	for i, s := range p.strokes {
		out[i] = append(Stroke(nil), s...)
	}
	return out
}

// Image rasterizes the strokes in black on a transparent background.
// An empty pad yields a fully transparent image.
func (p *Pad) Image() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	if p.IsEmpty() {
		return dst
	}

	z := &canvas{
		Rasterizer: vector.NewRasterizer(p.width, p.height),
		w:          float32(p.width),
		h:          float32(p.height),
	}
	hw := p.penWidth / 2
	for _, s := range p.strokes {
		for i, pt := range s {
			z.dot(pt, hw)
			if i > 0 {
				z.segment(s[i-1], pt, hw)
			}
		}
	}
	z.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{})

	return dst
}

// PNG encodes the rasterized strokes
func (p *Pad) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, p.Image()); err != nil {
		return nil, fmt.Errorf("failed to encode signature: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL exports the pad as a base64 PNG data URI, like canvas.toDataURL()
func (p *Pad) DataURL() (string, error) {
	data, err := p.PNG()
	if err != nil {
		return "", err
	}
	return pngPrefix + base64.StdEncoding.EncodeToString(data), nil
}

// ParseStrokes decodes strokes from JSON of the form [[{"x":1,"y":2},...],...]
func ParseStrokes(data []byte) ([]Stroke, error) {
	var strokes []Stroke
	if err := json.Unmarshal(data, &strokes); err != nil {
		return nil, fmt.Errorf("invalid signature strokes: %w", err)
	}
	return strokes, nil
}

// canvas keeps every vertex inside the rasterizer bounds
type canvas struct {
	*vector.Rasterizer
	w, h float32
}

func (z *canvas) clamp(x, y float64) (float32, float32) {
	fx, fy := float32(x), float32(y)
	fx = max(0, min(fx, z.w))
	fy = max(0, min(fy, z.h))
	return fx, fy
}

func (z *canvas) moveTo(x, y float64) {
	z.MoveTo(z.clamp(x, y))
}

func (z *canvas) lineTo(x, y float64) {
	z.LineTo(z.clamp(x, y))
}

// segment fills the rectangle of half-width hw around a-b. Every polygon is
// wound the same way so overlapping shapes add up instead of cancelling.
func (z *canvas) segment(a, b Point, hw float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	nx, ny := -dy/l*hw, dx/l*hw

	z.moveTo(a.X+nx, a.Y+ny)
	z.lineTo(b.X+nx, b.Y+ny)
	z.lineTo(b.X-nx, b.Y-ny)
	z.lineTo(a.X-nx, a.Y-ny)
	z.ClosePath()
}

// dot fills an octagon of radius r around c, rounding joins and single taps
func (z *canvas) dot(c Point, r float64) {
	const sides = 8
	for k := 0; k < sides; k++ {
		a := -float64(k) * 2 * math.Pi / sides
		x, y := c.X+r*math.Cos(a), c.Y+r*math.Sin(a)
		if k == 0 {
			z.moveTo(x, y)
		} else {
			z.lineTo(x, y)
		}
	}
	z.ClosePath()
}

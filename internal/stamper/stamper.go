// Package stamper fills an attestation by drawing the submission record onto
// the static PDF form of the requested layout.
package stamper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/a3tai/attestation-stamper/internal/attestation"
	"github.com/a3tai/attestation-stamper/internal/download"
	"github.com/a3tai/attestation-stamper/internal/layout"
	"github.com/a3tai/attestation-stamper/internal/template"
)

// Stamping stages reported by Error.Op
const (
	OpLayout    = "layout"
	OpTemplate  = "template"
	OpSignature = "signature"
	OpRender    = "render"
)

// Error reports which stage of a stamping run failed. Any Error means no
// document was produced.
type Error struct {
	Op     string `json:"operation"`
	Layout string `json:"layout"`
	Err    error  `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("attestation %s failed in %s: %v", e.Layout, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Stamper generates filled attestations. It is safe for concurrent use; each
// call works on its own copy of the template.
type Stamper struct {
	layouts  *layout.Registry
	source   template.Source
	renderer Renderer
	now      func() time.Time
	logger   *slog.Logger
}

// Option customizes a Stamper
type Option func(*Stamper)

// WithRenderer replaces the pdfcpu renderer
func WithRenderer(r Renderer) Option {
	return func(s *Stamper) { s.renderer = r }
}

// WithClock sets the time source used for the date and time fields
func WithClock(now func() time.Time) Option {
	return func(s *Stamper) { s.now = now }
}

// WithLogger sets the logger; the default is slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(s *Stamper) { s.logger = l }
}

// New creates a stamper reading templates from source
func New(layouts *layout.Registry, source template.Source, opts ...Option) *Stamper {
	s := &Stamper{
		layouts: layouts,
		source:  source,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.renderer == nil {
		s.renderer = NewPDFCPURenderer(DefaultFont)
	}
	return s
}

// Generate stamps rec and wraps the bytes as the attestation.pdf download
func (s *Stamper) Generate(ctx context.Context, layoutID string, rec attestation.Record) (*download.Artifact, error) {
	data, err := s.Stamp(ctx, layoutID, rec)
	if err != nil {
		return nil, err
	}
	return download.NewPDF(data), nil
}

// Stamp loads the layout's template, draws rec on its first page and returns
// the serialized document. rec is expected to be validated already.
func (s *Stamper) Stamp(ctx context.Context, layoutID string, rec attestation.Record) ([]byte, error) {
	l, err := s.layouts.Get(layoutID)
	if err != nil {
		return nil, &Error{Op: OpLayout, Layout: layoutID, Err: err}
	}

	tpl, err := s.source.Load(ctx, l.Template)
	if err != nil {
		return nil, &Error{Op: OpTemplate, Layout: l.ID, Err: err}
	}

	info, err := template.Inspect(tpl)
	if err != nil {
		return nil, &Error{Op: OpTemplate, Layout: l.ID, Err: err}
	}

	if _, ok := l.Mark(rec.Purpose); !ok {
		s.logger.Debug("Purpose has no mark position, leaving all boxes empty",
			"layout", l.ID, "purpose", rec.Purpose)
	}
	if rec.Signature == "" {
		s.logger.Debug("No signature supplied, leaving signature area blank", "layout", l.ID)
	}

	overlay, err := Plan(rec, l, s.now(), info.Width)
	if err != nil {
		return nil, &Error{Op: OpSignature, Layout: l.ID, Err: err}
	}

	out, err := s.renderer.Render(tpl, overlay)
	if err != nil {
		return nil, &Error{Op: OpRender, Layout: l.ID, Err: err}
	}

	s.logger.Debug("Attestation stamped", "layout", l.ID, "overlay", overlay.String(), "size", len(out))
	return out, nil
}

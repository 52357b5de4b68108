package attestation

import (
	"context"
	"fmt"
	"strings"

	"github.com/a3tai/attestation-stamper/internal/download"
	"github.com/a3tai/attestation-stamper/internal/layout"
	"github.com/a3tai/attestation-stamper/internal/signature"
)

// State is the form controller lifecycle
type State int

const (
	StateEmpty State = iota
	StateEditing
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateEditing:
		return "editing"
	case StateSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// Generator turns a valid record into a downloadable document
type Generator interface {
	Generate(ctx context.Context, layoutID string, rec Record) (*download.Artifact, error)
}

// Session is one form instance: a record, a signature pad and a state.
// It is owned by a single request or page and is not safe for concurrent use.
type Session struct {
	layout *layout.Layout
	record Record
	pad    *signature.Pad
	state  State
}

// NewSession creates an empty form bound to a layout
func NewSession(l *layout.Layout) *Session {
	return &Session{
		layout: l,
		pad:    signature.NewPad(signature.DefaultWidth, signature.DefaultHeight),
		state:  StateEmpty,
	}
}

// Layout returns the layout the form is bound to
func (s *Session) Layout() *layout.Layout {
	return s.layout
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return s.state
}

// Record returns a copy of the current record
func (s *Session) Record() Record {
	return s.record
}

// Pad returns the signature surface. Drawing on it counts as editing.
func (s *Session) Pad() *signature.Pad {
	s.state = StateEditing
	return s.pad
}

// Set assigns a form input by name: any record field, "purpose" or
// "signature" (a data URI)
func (s *Session) Set(name, value string) error {
	switch {
	case strings.EqualFold(name, "purpose"):
		s.record.Purpose = layout.Purpose(strings.TrimSpace(value))
	case strings.EqualFold(name, "signature"):
		s.record.Signature = strings.TrimSpace(value)
	default:
		f, ok := layout.ParseField(name)
		if !ok {
			return fmt.Errorf("unknown form field: %s", name)
		}
		s.record.SetValue(f, value)
	}
	s.state = StateEditing
	return nil
}

// SetRecord replaces every input at once
func (s *Session) SetRecord(rec Record) {
	s.record = rec.Normalized()
	s.state = StateEditing
}

// Validate runs the required-field checks without submitting
func (s *Session) Validate(ctx context.Context) error {
	return Validate(ctx, s.layout, s.record.Normalized())
}

// Submit validates the record and, only if it is valid, hands it to gen.
// When the record carries no signature the pad is exported instead, so an
// untouched or cleared pad produces a blank image rather than an error.
// Inputs are kept after submission; editing again re-opens the form.
func (s *Session) Submit(ctx context.Context, gen Generator) (*download.Artifact, error) {
	rec := s.record.Normalized()

	if err := Validate(ctx, s.layout, rec); err != nil {
		s.state = StateEditing
		return nil, err
	}

	if rec.Signature == "" {
		uri, err := s.pad.DataURL()
		if err != nil {
			s.state = StateEditing
			return nil, err
		}
		rec.Signature = uri
	}

	artifact, err := gen.Generate(ctx, s.layout.ID, rec)
	if err != nil {
		s.state = StateEditing
		return nil, err
	}

	s.state = StateSubmitted
	return artifact, nil
}

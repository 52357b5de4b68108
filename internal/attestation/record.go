// Package attestation holds the submission record and the form controller
// that validates it before handing it to a document generator.
package attestation

import (
	"fmt"
	"strings"
	"time"

	"github.com/a3tai/attestation-stamper/internal/layout"
	"golang.org/x/text/unicode/norm"
)

// BirthDayFormat is the layout birth dates are printed with (DD/MM/YYYY)
const BirthDayFormat = "02/01/2006"

// birthDayInputs are the accepted input layouts, most common first
var birthDayInputs = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"02/01/2006",
	"2/1/2006",
	"2006/01/02",
	"02-01-2006",
}

// Record is the single entity collected by the form
type Record struct {
	Name       string         `json:"name" validate:"required"`
	BirthDay   string         `json:"birthDay" validate:"required,birthday"`
	BirthTown  string         `json:"birthTown,omitempty"`
	Address    string         `json:"address" validate:"required"`
	Town       string         `json:"town" validate:"required"`
	PostalCode string         `json:"postalCode" validate:"required"`
	Purpose    layout.Purpose `json:"purpose" validate:"required"`
	// Signature is an image data URI. Its presence is not validated.
	Signature string `json:"signature,omitempty"`
}

// Value returns the text of a record field. BirthDay is returned formatted
// as DD/MM/YYYY when it parses, raw otherwise.
func (r *Record) Value(f layout.Field) string {
	switch f {
	case layout.FieldName:
		return r.Name
	case layout.FieldBirthDay:
		if formatted, err := FormatBirthDay(r.BirthDay); err == nil {
			return formatted
		}
		return r.BirthDay
	case layout.FieldBirthTown:
		return r.BirthTown
	case layout.FieldAddress:
		return r.Address
	case layout.FieldTown:
		return r.Town
	case layout.FieldPostalCode:
		return r.PostalCode
	default:
		return ""
	}
}

// SetValue assigns a text field after trimming and NFC normalization
func (r *Record) SetValue(f layout.Field, v string) {
	v = Normalize(v)
	switch f {
	case layout.FieldName:
		r.Name = v
	case layout.FieldBirthDay:
		r.BirthDay = v
	case layout.FieldBirthTown:
		r.BirthTown = v
	case layout.FieldAddress:
		r.Address = v
	case layout.FieldTown:
		r.Town = v
	case layout.FieldPostalCode:
		r.PostalCode = v
	}
}

// Normalized returns a copy with every text field trimmed and NFC-composed
func (r Record) Normalized() Record {
	r.Name = Normalize(r.Name)
	r.BirthDay = Normalize(r.BirthDay)
	r.BirthTown = Normalize(r.BirthTown)
	r.Address = Normalize(r.Address)
	r.Town = Normalize(r.Town)
	r.PostalCode = Normalize(r.PostalCode)
	r.Purpose = layout.Purpose(strings.TrimSpace(string(r.Purpose)))
	r.Signature = strings.TrimSpace(r.Signature)
	return r
}

// Normalize trims surrounding spaces and composes accents so "é" typed as
// e + combining acute prints as one glyph
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// ParseBirthDay accepts ISO dates, RFC 3339 timestamps and DD/MM/YYYY
func ParseBirthDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("birth day cannot be empty")
	}
	for _, in := range birthDayInputs {
		if t, err := time.Parse(in, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized birth day: %q", s)
}

// FormatBirthDay reformats any accepted birth day as DD/MM/YYYY
func FormatBirthDay(s string) (string, error) {
	t, err := ParseBirthDay(s)
	if err != nil {
		return "", err
	}
	return t.Format(BirthDayFormat), nil
}

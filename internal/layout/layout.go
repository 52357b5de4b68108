// Package layout holds the declarative description of each attestation form
// revision: which record fields are printed where, where the purpose mark goes,
// where the generation date is written and how the signature is placed.
//
// Coordinates are PDF user space units with the origin at the bottom-left of
// the first page, exactly as the form template is drawn.
package layout

import (
	"errors"
	"fmt"
	"strings"
)

// Field identifies a text field of the submission record
type Field string

const (
	FieldName       Field = "name"
	FieldBirthDay   Field = "birthDay"
	FieldBirthTown  Field = "birthTown"
	FieldAddress    Field = "address"
	FieldTown       Field = "town"
	FieldPostalCode Field = "postalCode"
)

// Fields lists every known record field in form order
var Fields = []Field{
	FieldName,
	FieldBirthDay,
	FieldBirthTown,
	FieldAddress,
	FieldTown,
	FieldPostalCode,
}

// ParseField matches a field name case-insensitively
func ParseField(s string) (Field, bool) {
	for _, f := range Fields {
		if strings.EqualFold(string(f), s) {
			return f, true
		}
	}
	return "", false
}

// Purpose is the reason for travel ticked on the form
type Purpose string

const (
	PurposePro             Purpose = "pro"
	PurposeGrocery         Purpose = "grocery"
	PurposeHealth          Purpose = "health"
	PurposeFamily          Purpose = "family"
	PurposeSport           Purpose = "sport"
	PurposeJudicial        Purpose = "judicial"
	PurposeGeneralInterest Purpose = "generalInterest"
)

// Purposes lists the closed set of purposes known to any layout
var Purposes = []Purpose{
	PurposePro,
	PurposeGrocery,
	PurposeHealth,
	PurposeFamily,
	PurposeSport,
	PurposeJudicial,
	PurposeGeneralInterest,
}

var purposeLabels = map[Purpose]string{
	PurposePro:             "Pro",
	PurposeGrocery:         "Achats de première nécessité",
	PurposeHealth:          "Santé",
	PurposeFamily:          "Famille",
	PurposeSport:           "Sport",
	PurposeJudicial:        "Convocation judiciaire",
	PurposeGeneralInterest: "Missions d'intérêt général",
}

// Label returns the French label shown in the form select
func (p Purpose) Label() string {
	if l, ok := purposeLabels[p]; ok {
		return l
	}
	return string(p)
}

// ParsePurpose matches a purpose case-insensitively
func ParsePurpose(s string) (Purpose, bool) {
	for _, p := range Purposes {
		if strings.EqualFold(string(p), s) {
			return p, true
		}
	}
	return "", false
}

// Point is a position on the page
type Point struct {
	X float64 `json:"x" mapstructure:"x"`
	Y float64 `json:"y" mapstructure:"y"`
}

// TextPlacement prints one or more record fields, joined by a single space,
// as one line starting at (X, Y)
type TextPlacement struct {
	Fields []Field `json:"fields"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Size   float64 `json:"size"`
}

// ClockPlacement prints the generation time formatted with a Go time layout
type ClockPlacement struct {
	Format string  `json:"format"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Size   float64 `json:"size"`
}

// SignaturePlacement positions the signature image. The image is scaled to
// TargetWidth keeping its aspect ratio. With RightMargin set the image is
// right-aligned: x = page width - scaled width - RightMargin.
type SignaturePlacement struct {
	TargetWidth float64 `json:"targetWidth"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	RightMargin float64 `json:"rightMargin,omitempty"`
}

// RightAligned reports whether X is derived from the page width
func (s SignaturePlacement) RightAligned() bool {
	return s.RightMargin > 0
}

// Layout describes one revision of the attestation form
type Layout struct {
	ID       string             `json:"id"`
	Title    string             `json:"title"`
	Template string             `json:"template"`
	Fields   []TextPlacement    `json:"fields"`
	Purposes []Purpose          `json:"purposes"`
	Marks    map[Purpose]Point  `json:"marks"`
	Glyph    string             `json:"glyph"`
	MarkSize float64            `json:"markSize"`
	Clock    []ClockPlacement   `json:"clock"`
	Sign     SignaturePlacement `json:"signature"`
}

// UsesField reports whether the layout prints f somewhere
func (l *Layout) UsesField(f Field) bool {
	for _, tp := range l.Fields {
		for _, tf := range tp.Fields {
			if tf == f {
				return true
			}
		}
	}
	return false
}

// HasPurpose reports whether p is offered by this layout
func (l *Layout) HasPurpose(p Purpose) bool {
	for _, lp := range l.Purposes {
		if lp == p {
			return true
		}
	}
	return false
}

// Mark returns the mark position for p
func (l *Layout) Mark(p Purpose) (Point, bool) {
	pt, ok := l.Marks[p]
	return pt, ok
}

// Validate checks the layout is usable for stamping
func (l *Layout) Validate() error {
	if l.ID == "" {
		return errors.New("layout id cannot be empty")
	}
	if l.Template == "" {
		return fmt.Errorf("layout %s: template cannot be empty", l.ID)
	}
	if len(l.Fields) == 0 {
		return fmt.Errorf("layout %s: no field placements", l.ID)
	}
	for i, tp := range l.Fields {
		if len(tp.Fields) == 0 {
			return fmt.Errorf("layout %s: placement %d has no fields", l.ID, i)
		}
		if tp.Size <= 0 {
			return fmt.Errorf("layout %s: placement %d has invalid size %v", l.ID, i, tp.Size)
		}
	}
	if len(l.Purposes) == 0 {
		return fmt.Errorf("layout %s: no purposes", l.ID)
	}
	for _, p := range l.Purposes {
		if _, ok := l.Marks[p]; !ok {
			return fmt.Errorf("layout %s: purpose %s has no mark position", l.ID, p)
		}
	}
	if l.Glyph == "" || l.MarkSize <= 0 {
		return fmt.Errorf("layout %s: mark glyph and size are required", l.ID)
	}
	for i, c := range l.Clock {
		if c.Format == "" || c.Size <= 0 {
			return fmt.Errorf("layout %s: clock placement %d is incomplete", l.ID, i)
		}
	}
	if l.Sign.TargetWidth <= 0 {
		return fmt.Errorf("layout %s: signature target width must be positive", l.ID)
	}
	return nil
}

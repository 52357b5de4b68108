package web

import (
	"bytes"
	_ "embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/a3tai/attestation-stamper/internal/attestation"
	"github.com/a3tai/attestation-stamper/internal/layout"
	"github.com/a3tai/attestation-stamper/internal/signature"
)

//go:embed form.html
var formHTML string

var formTemplate = template.Must(template.New("form").Parse(formHTML))

var fieldLabels = map[layout.Field]string{
	layout.FieldName:       "Nom",
	layout.FieldBirthDay:   "Date de naissance",
	layout.FieldBirthTown:  "Lieu de naissance",
	layout.FieldAddress:    "Adresse",
	layout.FieldTown:       "Ville",
	layout.FieldPostalCode: "Code Postal",
}

type formField struct {
	Name  string
	Label string
	Type  string
	Value string
}

type formOption struct {
	Value    string
	Label    string
	Selected bool
}

type formPage struct {
	Layout       string
	Error        string
	Fields       []formField
	Purposes     []formOption
	Layouts      []formOption
	CanvasWidth  int
	CanvasHeight int
}

func (s *Server) newFormPage(l *layout.Layout, rec attestation.Record, message string) formPage {
	page := formPage{
		Layout:       l.ID,
		Error:        message,
		CanvasWidth:  signature.DefaultWidth,
		CanvasHeight: signature.DefaultHeight,
	}

	for _, f := range layout.Fields {
		if !l.UsesField(f) {
			continue
		}
		field := formField{Name: string(f), Label: fieldLabels[f], Type: "text", Value: rec.Value(f)}
		if f == layout.FieldBirthDay {
			// date inputs only accept ISO values
			field.Type = "date"
			field.Value = rec.BirthDay
			if t, err := attestation.ParseBirthDay(rec.BirthDay); err == nil {
				field.Value = t.Format("2006-01-02")
			}
		}
		page.Fields = append(page.Fields, field)
	}

	for _, p := range l.Purposes {
		page.Purposes = append(page.Purposes, formOption{
			Value:    string(p),
			Label:    p.Label(),
			Selected: p == rec.Purpose,
		})
	}

	for _, other := range s.layouts.List() {
		page.Layouts = append(page.Layouts, formOption{
			Value:    other.ID,
			Label:    other.Title,
			Selected: other.ID == l.ID,
		})
	}

	return page
}

// renderForm writes the form page. Inputs are echoed back so a rejected
// submission does not lose what was typed.
func (s *Server) renderForm(w http.ResponseWriter, status int, l *layout.Layout, rec attestation.Record, message string) {
	var buf bytes.Buffer
	if err := formTemplate.Execute(&buf, s.newFormPage(l, rec, message)); err != nil {
		respondWithErr(w, http.StatusInternalServerError, "internal error", "failed to render form", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
}

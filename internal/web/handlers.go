package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/a3tai/attestation-stamper/internal/attestation"
	"github.com/a3tai/attestation-stamper/internal/download"
	"github.com/a3tai/attestation-stamper/internal/layout"
	"github.com/a3tai/attestation-stamper/internal/signature"
	"github.com/google/uuid"
)

const (
	ErrGeneration    = "Impossible de générer l'attestation, veuillez réessayer."
	ErrUnknownLayout = "unknown layout"
	ErrInvalidForm   = "invalid form submission"
	ErrTooLarge      = "submission too large"
)

// SubmissionHeader carries the id under which a submission is logged
const SubmissionHeader = "X-Submission-Id"

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	slog.Debug("Health check request received")
	_ = writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	l, err := s.layouts.Get(r.URL.Query().Get("layout"))
	if err != nil {
		respondWithErr(w, http.StatusNotFound, ErrUnknownLayout, "Form requested for unknown layout", err)
		return
	}
	s.renderForm(w, http.StatusOK, l, attestation.Record{}, "")
}

// handleSubmit runs one form session per request. Personal fields are never
// logged, only the submission id, the layout and the names of failed fields.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	id := uuid.NewString()
	log := slog.With("submission", id)
	w.Header().Set(SubmissionHeader, id)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodySize)
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithErr(w, http.StatusRequestEntityTooLarge, ErrTooLarge, "Submission rejected", err)
			return
		}
		respondWithErr(w, http.StatusBadRequest, ErrInvalidForm, "Submission rejected", err)
		return
	}

	l, err := s.layouts.Get(r.PostFormValue("layout"))
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, ErrUnknownLayout, "Submission for unknown layout", err)
		return
	}
	log = log.With("layout", l.ID)

	session := attestation.NewSession(l)
	for _, f := range layout.Fields {
		if values, ok := r.PostForm[string(f)]; ok && len(values) > 0 {
			_ = session.Set(string(f), values[0])
		}
	}
	_ = session.Set("purpose", r.PostFormValue("purpose"))

	if sig := r.PostFormValue("signature"); sig != "" {
		_ = session.Set("signature", sig)
	} else if raw := r.PostFormValue("signature_strokes"); raw != "" {
		strokes, err := signature.ParseStrokes([]byte(raw))
		if err != nil {
			respondWithErr(w, http.StatusBadRequest, ErrInvalidForm, "Submission rejected", err)
			return
		}
		session.Pad().AddStrokes(strokes)
	}

	artifact, err := session.Submit(r.Context(), s.generator)
	if errors.Is(err, attestation.ErrAllFieldsRequired) {
		var verr *attestation.ValidationError
		if errors.As(err, &verr) {
			log.Info("Submission rejected", "fields", verr.Fields)
		}
		s.renderForm(w, http.StatusBadRequest, l, session.Record(), attestation.MessageAllFieldsRequired)
		return
	}
	if err != nil {
		log.Error("Attestation generation failed", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(ErrGeneration))
		return
	}

	if err := download.NewHTTPSink(w).Deliver(r.Context(), artifact); err != nil {
		log.Error("failed to write attestation to http response", "error", err)
		return
	}
	log.Info("Attestation generated", "size", artifact.Size())
}

type purposeInfo struct {
	Value layout.Purpose `json:"value"`
	Label string         `json:"label"`
}

type layoutInfo struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Default  bool           `json:"default"`
	Fields   []layout.Field `json:"fields"`
	Purposes []purposeInfo  `json:"purposes"`
}

func describeLayout(l *layout.Layout, defaultID string) layoutInfo {
	info := layoutInfo{
		ID:      l.ID,
		Title:   l.Title,
		Default: l.ID == defaultID,
	}
	for _, f := range layout.Fields {
		if l.UsesField(f) {
			info.Fields = append(info.Fields, f)
		}
	}
	for _, p := range l.Purposes {
		info.Purposes = append(info.Purposes, purposeInfo{Value: p, Label: p.Label()})
	}
	return info
}

func (s *Server) handleLayouts(w http.ResponseWriter, _ *http.Request) {
	layouts := s.layouts.List()
	out := make([]layoutInfo, 0, len(layouts))
	for _, l := range layouts {
		out = append(out, describeLayout(l, s.layouts.DefaultID()))
	}
	_ = writeJSON(w, http.StatusOK, out)
}

// helpers ------------

func respondWithErr(w http.ResponseWriter, code int, responseBody string, logMsg string, e error) {
	slog.Error(logMsg, "error", e, "status_code", code, "response_body", responseBody)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	if _, err := w.Write([]byte(responseBody)); err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
}

func closeRequestBody(r *http.Request) {
	if err := r.Body.Close(); err != nil {
		slog.Error("failed to close request body", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal JSON payload", "error", err)
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err = w.Write(payload); err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
	return nil
}

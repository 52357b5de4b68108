package download

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strconv"
)

// HTTPSink writes an artifact as a browser download
type HTTPSink struct {
	w http.ResponseWriter
}

// NewHTTPSink wraps a response writer
func NewHTTPSink(w http.ResponseWriter) *HTTPSink {
	return &HTTPSink{w: w}
}

// Deliver sends the artifact with attachment headers and a 200 status
func (s *HTTPSink) Deliver(_ context.Context, a *Artifact) error {
	if err := a.Validate(); err != nil {
		return err
	}

	mimeType := a.MIMEType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	h := s.w.Header()
	h.Set("Content-Type", mimeType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Name}))
	h.Set("Content-Length", strconv.Itoa(a.Size()))
	h.Set("Cache-Control", "no-store")
	h.Set("X-Content-Type-Options", "nosniff")
	s.w.WriteHeader(http.StatusOK)

	if _, err := s.w.Write(a.Data); err != nil {
		return fmt.Errorf("failed to write %s: %w", a.Name, err)
	}
	return nil
}

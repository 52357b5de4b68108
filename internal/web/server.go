// Package web serves the attestation form over HTTP: the form page, the
// submission endpoint that streams the filled PDF back as a download, and a
// small JSON API describing the available layouts.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/a3tai/attestation-stamper/internal/attestation"
	"github.com/a3tai/attestation-stamper/internal/layout"
	"github.com/gorilla/mux"
)

// DefaultMaxBodySize bounds a form submission, signature image included
const DefaultMaxBodySize = 1 << 20

// Config holds the HTTP listener settings
type Config struct {
	Host        string
	Port        int
	MaxBodySize int64
}

// Server is the HTTP front end of the form controller
type Server struct {
	server      *http.Server
	config      Config
	layouts     *layout.Registry
	generator   attestation.Generator
	maxBodySize int64
}

// NewServer wires the routes. The generator is only called with records that
// passed validation.
func NewServer(layouts *layout.Registry, gen attestation.Generator, config Config) (*Server, error) {
	if layouts == nil {
		return nil, fmt.Errorf("layout registry cannot be nil")
	}
	if gen == nil {
		return nil, fmt.Errorf("generator cannot be nil")
	}

	s := &Server{
		config:      config,
		layouts:     layouts,
		generator:   gen,
		maxBodySize: config.MaxBodySize,
	}
	if s.maxBodySize <= 0 {
		s.maxBodySize = DefaultMaxBodySize
	}

	slog.Info("Creating new server", "host", config.Host, "port", config.Port)

	addr := fmt.Sprintf("%v:%v", config.Host, config.Port)
	s.server = &http.Server{
		Handler:           s.Handler(),
		Addr:              addr,
		WriteTimeout:      15 * time.Second,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("Server created successfully", "address", addr)
	return s, nil
}

// Handler returns the router, for use with httptest
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/", s.handleForm).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/attestation", s.handleSubmit).Methods(http.MethodPost)
	router.HandleFunc("/api/layouts", s.handleLayouts).Methods(http.MethodGet)
	router.HandleFunc("/api/health", handleHealth).Methods(http.MethodGet)

	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("Request rejected", "method", r.Method, "path", r.URL.Path)
		respondWithErr(w, http.StatusMethodNotAllowed, "method not allowed", "invalid method", nil)
	})

	return router
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.server.Addr
}

// ListenAndServe blocks until the server stops. http.ErrServerClosed is
// returned after Stop.
func (s *Server) ListenAndServe() error {
	slog.Info("Starting server", "host", s.config.Host, "port", s.config.Port)
	return s.server.ListenAndServe()
}

// Stop shuts the server down, waiting for in-flight downloads
func (s *Server) Stop(ctx context.Context) error {
	slog.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if err != nil {
		slog.Error("Error during server shutdown", "error", err)
	} else {
		slog.Info("Server shut down successfully")
	}
	return err
}

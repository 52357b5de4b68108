package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/a3tai/attestation-stamper/internal/config"
	"github.com/a3tai/attestation-stamper/internal/download"
	"github.com/a3tai/attestation-stamper/internal/layout"
	"github.com/a3tai/attestation-stamper/internal/logging"
	"github.com/a3tai/attestation-stamper/internal/mcp"
	"github.com/a3tai/attestation-stamper/internal/stamper"
	"github.com/a3tai/attestation-stamper/internal/template"
	"github.com/a3tai/attestation-stamper/internal/web"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// buildRegistry combines the built-in layouts with the optional layouts file.
// A layout in the file replaces the built-in layout with the same ID.
func buildRegistry(cfg *config.Config) (*layout.Registry, error) {
	layouts := layout.Builtin()
	if cfg.LayoutsFile != "" {
		extra, err := layout.LoadFile(cfg.LayoutsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load layouts file: %w", err)
		}
		layouts = append(layouts, extra...)
	}
	return layout.NewRegistry(cfg.Layout, layouts...)
}

// buildSource returns the template source, fronted by the in-memory cache
func buildSource(cfg *config.Config) (template.Source, error) {
	var (
		src template.Source
		err error
	)
	if cfg.TemplateURL != "" {
		client := &http.Client{Timeout: 30 * time.Second}
		src, err = template.NewHTTPSource(cfg.TemplateURL, client, cfg.MaxTemplateSize)
	} else {
		src, err = template.NewDirSource(cfg.TemplateDir, cfg.MaxTemplateSize)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create template source: %w", err)
	}
	if cfg.CacheSize == 0 {
		return src, nil
	}
	return template.NewCachedSource(src, cfg.CacheSize), nil
}

// buildStamper wires the layouts and the template source into a stamper
// stamping dates in the configured timezone
func buildStamper(cfg *config.Config) (*layout.Registry, *stamper.Stamper, error) {
	layouts, err := buildRegistry(cfg)
	if err != nil {
		return nil, nil, err
	}
	src, err := buildSource(cfg)
	if err != nil {
		return nil, nil, err
	}

	loc := cfg.Location()
	st := stamper.New(layouts, src,
		stamper.WithClock(func() time.Time { return time.Now().In(loc) }),
		stamper.WithLogger(logging.GetLogger()),
	)
	return layouts, st, nil
}

// runServerMode serves the form over HTTP until a shutdown signal arrives
func runServerMode(ctx context.Context, server *web.Server) error {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signalCh)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case sig := <-signalCh:
		slog.Info("Received signal, initiating graceful shutdown", "signal", sig.String())
		if err := server.Stop(ctx); err != nil {
			return err
		}
		if err := <-serverErrCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	slog.Info("Server stopped successfully")
	return nil
}

// runStdioMode serves the MCP tools; the parent process controls our lifecycle
func runStdioMode(ctx context.Context, cfg *config.Config, layouts *layout.Registry, st *stamper.Stamper) error {
	sink, err := download.NewFileSink(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to open output directory: %w", err)
	}

	server, err := mcp.NewServer(cfg, layouts, st, sink)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	return server.Run(ctx)
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// logs go to stderr so stdio mode keeps stdout for the protocol
	logging.InitLoggerWithFormat(cfg.LogLevel, cfg.LogFormat)

	if version != "dev" {
		cfg.Version = version
	}
	slog.Debug("Starting with configuration", "config", cfg.String())

	layouts, st, err := buildStamper(cfg)
	if err != nil {
		slog.Error("Failed to initialize attestation stamper", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.IsServerMode() {
		server, err := web.NewServer(layouts, st, web.Config{
			Host:        cfg.Host,
			Port:        cfg.Port,
			MaxBodySize: cfg.MaxBodySize,
		})
		if err != nil {
			slog.Error("Failed to create server", "error", err)
			os.Exit(1)
		}
		err = runServerMode(ctx, server)
		if err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := runStdioMode(ctx, cfg, layouts, st); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("Attestation Stamper\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}

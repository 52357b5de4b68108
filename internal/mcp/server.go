package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/a3tai/attestation-stamper/internal/attestation"
	"github.com/a3tai/attestation-stamper/internal/config"
	"github.com/a3tai/attestation-stamper/internal/download"
	"github.com/a3tai/attestation-stamper/internal/layout"
	"github.com/a3tai/attestation-stamper/internal/signature"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Tool argument names, mapped to record fields
var fieldArguments = map[string]layout.Field{
	"name":        layout.FieldName,
	"birth_day":   layout.FieldBirthDay,
	"birth_town":  layout.FieldBirthTown,
	"address":     layout.FieldAddress,
	"town":        layout.FieldTown,
	"postal_code": layout.FieldPostalCode,
}

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	layouts   *layout.Registry
	generator attestation.Generator
	sink      *download.FileSink
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance writing attestations through sink
func NewServer(cfg *config.Config, layouts *layout.Registry, gen attestation.Generator,
	sink *download.FileSink,
) (*Server, error) {
	if layouts == nil {
		return nil, fmt.Errorf("layout registry cannot be nil")
	}
	if gen == nil {
		return nil, fmt.Errorf("generator cannot be nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("file sink cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:    cfg,
		layouts:   layouts,
		generator: gen,
		sink:      sink,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	generateTool := mcp.NewTool(
		"attestation_generate",
		mcp.WithDescription("Fill the travel attestation form and write the PDF to the output directory. "+
			"Every personal field is required; birth_town only for layouts that print it."),
		mcp.WithString("name", mcp.Required(), mcp.Description("First and last name")),
		mcp.WithString("birth_day", mcp.Required(),
			mcp.Description("Birth date, YYYY-MM-DD or DD/MM/YYYY")),
		mcp.WithString("birth_town", mcp.Description("Birth town (2020-04-02 layout)")),
		mcp.WithString("address", mcp.Required(), mcp.Description("Street address")),
		mcp.WithString("town", mcp.Required(), mcp.Description("Town")),
		mcp.WithString("postal_code", mcp.Required(), mcp.Description("Postal code")),
		mcp.WithString("purpose", mcp.Required(),
			mcp.Description("Reason for travel, see attestation_layouts"),
			mcp.Enum(purposeValues()...),
		),
		mcp.WithString("layout", mcp.Description("Layout ID (uses the default layout if empty)")),
		mcp.WithString("signature", mcp.Description("Signature image as a PNG or JPEG data URI")),
		mcp.WithString("signature_strokes",
			mcp.Description(`Signature as JSON strokes, e.g. [[{"x":10,"y":20},{"x":80,"y":40}]]`)),
		mcp.WithString("output", mcp.Description("File name inside the output directory (default attestation.pdf)")),
	)
	s.mcpServer.AddTool(generateTool, s.handleGenerate)

	layoutsTool := mcp.NewTool(
		"attestation_layouts",
		mcp.WithDescription("List the attestation layouts with their fields and purposes"),
	)
	s.mcpServer.AddTool(layoutsTool, s.handleLayouts)
}

func purposeValues() []string {
	out := make([]string, 0, len(layout.Purposes))
	for _, p := range layout.Purposes {
		out = append(out, string(p))
	}
	return out
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// Handler functions
func (s *Server) handleGenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	l, err := s.layouts.Get(stringArg(args, "layout"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	session := attestation.NewSession(l)
	for arg, field := range fieldArguments {
		_ = session.Set(string(field), stringArg(args, arg))
	}
	_ = session.Set("purpose", stringArg(args, "purpose"))

	if sig := stringArg(args, "signature"); sig != "" {
		_ = session.Set("signature", sig)
	} else if raw := stringArg(args, "signature_strokes"); raw != "" {
		strokes, err := signature.ParseStrokes([]byte(raw))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		session.Pad().AddStrokes(strokes)
	}

	artifact, err := session.Submit(ctx, s.generator)
	if errors.Is(err, attestation.ErrAllFieldsRequired) {
		return mcp.NewToolResultError(attestation.MessageAllFieldsRequired), nil
	}
	if err != nil {
		slog.Error("Attestation generation failed", "layout", l.ID, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to generate attestation: %v", err)), nil
	}

	if name := strings.TrimSpace(stringArg(args, "output")); name != "" {
		artifact.Name = name
	}
	path, err := s.sink.Path(artifact.Name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.sink.Deliver(ctx, artifact); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	slog.Info("Attestation written", "layout", l.ID, "size", artifact.Size())

	responseText := fmt.Sprintf("Attestation written to: %s\n", path)
	responseText += fmt.Sprintf("Layout: %s\n", l.ID)
	responseText += fmt.Sprintf("Purpose: %s\n", session.Record().Purpose.Label())
	responseText += fmt.Sprintf("Size: %d bytes\n", artifact.Size())
	responseText += fmt.Sprintf("Content Type: %s\n", artifact.MIMEType)

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleLayouts(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.formatLayouts()), nil
}

// Formatting methods
func (s *Server) formatLayouts() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Attestation layouts (default: %s)\n", s.layouts.DefaultID())

	for _, l := range s.layouts.List() {
		fmt.Fprintf(&b, "\n📄 %s - %s\n", l.ID, l.Title)

		var fields []string
		for arg, field := range fieldArguments {
			if l.UsesField(field) {
				fields = append(fields, arg)
			}
		}
		fmt.Fprintf(&b, "  Fields: %s\n", strings.Join(sortedByForm(fields), ", "))

		b.WriteString("  Purposes:\n")
		for _, p := range l.Purposes {
			fmt.Fprintf(&b, "  • %s (%s)\n", p, p.Label())
		}
	}
	return b.String()
}

// sortedByForm orders argument names the way the form shows the fields
func sortedByForm(args []string) []string {
	out := make([]string, 0, len(args))
	for _, f := range layout.Fields {
		for _, arg := range args {
			if fieldArguments[arg] == f {
				out = append(out, arg)
			}
		}
	}
	return out
}

// Run serves the tools over standard I/O until stdin closes
func (s *Server) Run(_ context.Context) error {
	slog.Debug("Starting attestation MCP server in stdio mode",
		"output", s.config.OutputDir, "layout", s.layouts.DefaultID())

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // embed zone data so the default timezone loads in minimal containers

	"github.com/a3tai/attestation-stamper/internal/layout"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort         = 8080
	DefaultHost         = "127.0.0.1"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultTemplateDir  = "templates"
	DefaultOutputDir    = "."
	DefaultTimezone     = "Europe/Paris"
	DefaultMaxBodySize  = 1 * 1024 * 1024  // 1MB, enough for a canvas PNG
	DefaultTemplateSize = 10 * 1024 * 1024 // 10MB
	DefaultCacheSize    = 8

	envPrefix = "ATTESTATION"
)

// Config holds all configuration for the attestation generator
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Template configuration
	TemplateDir     string // directory holding the per-layout PDF forms
	TemplateURL     string // optional HTTP base URL, takes precedence over TemplateDir
	MaxTemplateSize int64
	CacheSize       int

	// Layout configuration
	Layout      string // default layout ID
	LayoutsFile string // optional YAML/JSON file adding or overriding layouts

	// Output configuration
	OutputDir   string // stdio mode only
	MaxBodySize int64  // server mode only
	Timezone    string // zone used for the printed date and time

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
	LogFormat  string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:            ModeServer,
		Host:            DefaultHost,
		Port:            DefaultPort,
		TemplateDir:     DefaultTemplateDir,
		MaxTemplateSize: DefaultTemplateSize,
		CacheSize:       DefaultCacheSize,
		Layout:          layout.DefaultID,
		OutputDir:       DefaultOutputDir,
		MaxBodySize:     DefaultMaxBodySize,
		Timezone:        DefaultTimezone,
		Version:         "1.0.0",
		ServerName:      "attestation-stamper",
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand paths if needed
	for _, p := range []*string{&cfg.TemplateDir, &cfg.OutputDir, &cfg.LayoutsFile} {
		if *p == "" {
			continue
		}
		if expandedPath, err := filepath.Abs(*p); err == nil {
			*p = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	// ATTESTATION_LOG_LEVEL maps to the log-level key
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("templates", cfg.TemplateDir)
	viper.SetDefault("template-url", cfg.TemplateURL)
	viper.SetDefault("max-template-size", cfg.MaxTemplateSize)
	viper.SetDefault("cache-size", cfg.CacheSize)
	viper.SetDefault("layout", cfg.Layout)
	viper.SetDefault("layouts", cfg.LayoutsFile)
	viper.SetDefault("output", cfg.OutputDir)
	viper.SetDefault("max-body-size", cfg.MaxBodySize)
	viper.SetDefault("timezone", cfg.Timezone)
	viper.SetDefault("log-level", cfg.LogLevel)
	viper.SetDefault("log-format", cfg.LogFormat)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Run mode: 'server' for the web form, 'stdio' for MCP standard I/O")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("templates", cfg.TemplateDir, "Directory containing the attestation PDF forms")
	pflag.String("template-url", cfg.TemplateURL, "Base URL to fetch the PDF forms from instead of --templates")
	pflag.Int64("max-template-size", cfg.MaxTemplateSize, "Maximum PDF form size in bytes")
	pflag.Int("cache-size", cfg.CacheSize, "Number of PDF forms kept in memory")
	pflag.String("layout", cfg.Layout, "Default form layout ID")
	pflag.String("layouts", cfg.LayoutsFile, "Optional YAML or JSON file with extra layouts")
	pflag.String("output", cfg.OutputDir, "Directory generated attestations are written to (stdio mode only)")
	pflag.Int64("max-body-size", cfg.MaxBodySize, "Maximum form submission size in bytes (server mode only)")
	pflag.String("timezone", cfg.Timezone, "Time zone of the printed date and time")
	pflag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.String("log-format", cfg.LogFormat, "Log format (text, json)")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"mode", "host", "port",
		"templates", "template-url", "max-template-size", "cache-size",
		"layout", "layouts",
		"output", "max-body-size", "timezone",
		"log-level", "log-format",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nAttestation Stamper - fills the travel attestation PDF form\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --templates=./templates                  "+
			"# web form on 127.0.0.1:8080 (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --host=0.0.0.0 --port=8081               # web form on all interfaces\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=stdio --output=/tmp/attestations  # MCP tools over stdio\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --layout=2020-03-24                      # older form by default\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  ATTESTATION_MODE           Run mode\n")
		fmt.Fprintf(os.Stderr, "  ATTESTATION_HOST           Server host\n")
		fmt.Fprintf(os.Stderr, "  ATTESTATION_PORT           Server port\n")
		fmt.Fprintf(os.Stderr, "  ATTESTATION_TEMPLATES      PDF form directory\n")
		fmt.Fprintf(os.Stderr, "  ATTESTATION_TEMPLATE_URL   PDF form base URL\n")
		fmt.Fprintf(os.Stderr, "  ATTESTATION_LAYOUT         Default layout ID\n")
		fmt.Fprintf(os.Stderr, "  ATTESTATION_LAYOUTS        Extra layouts file\n")
		fmt.Fprintf(os.Stderr, "  ATTESTATION_OUTPUT         Output directory\n")
		fmt.Fprintf(os.Stderr, "  ATTESTATION_MAX_BODY_SIZE  Maximum submission size\n")
		fmt.Fprintf(os.Stderr, "  ATTESTATION_TIMEZONE       Time zone\n")
		fmt.Fprintf(os.Stderr, "  ATTESTATION_LOG_LEVEL      Log level\n")
		fmt.Fprintf(os.Stderr, "  ATTESTATION_LOG_FORMAT     Log format\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.TemplateDir = viper.GetString("templates")
	cfg.TemplateURL = viper.GetString("template-url")
	cfg.MaxTemplateSize = viper.GetInt64("max-template-size")
	cfg.CacheSize = viper.GetInt("cache-size")
	cfg.Layout = viper.GetString("layout")
	cfg.LayoutsFile = viper.GetString("layouts")
	cfg.OutputDir = viper.GetString("output")
	cfg.MaxBodySize = viper.GetInt64("max-body-size")
	cfg.Timezone = viper.GetString("timezone")
	cfg.LogLevel = viper.GetString("log-level")
	cfg.LogFormat = viper.GetString("log-format")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// Validate template source. Directories are not checked for existence
	// here; a missing form is reported when it is first loaded.
	if c.TemplateURL != "" {
		u, err := url.Parse(c.TemplateURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("template URL must be an absolute http(s) URL: %s", c.TemplateURL)
		}
	} else if c.TemplateDir == "" {
		return errors.New("template directory cannot be empty")
	}

	if c.MaxTemplateSize <= 0 {
		return errors.New("maximum template size must be positive")
	}
	if c.CacheSize < 0 {
		return errors.New("cache size cannot be negative")
	}

	if c.Layout == "" {
		return errors.New("default layout cannot be empty")
	}

	if c.Mode == ModeStdio && c.OutputDir == "" {
		return errors.New("output directory cannot be empty")
	}

	if c.MaxBodySize <= 0 {
		return errors.New("maximum body size must be positive")
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.LogFormat)
	}

	return nil
}

// Location returns the configured time zone, UTC if it cannot be loaded
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, TemplateDir: %s, TemplateURL: %s, Layout: %s, "+
		"OutputDir: %s, Timezone: %s, LogLevel: %s, MaxBodySize: %d}",
		c.Mode, c.Host, c.Port, c.TemplateDir, c.TemplateURL, c.Layout,
		c.OutputDir, c.Timezone, c.LogLevel, c.MaxBodySize)
}

// IsServerMode returns true if the web form is served over HTTP
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the MCP tools are served over stdio
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}

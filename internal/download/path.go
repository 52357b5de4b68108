package download

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PathValidator keeps requested output names inside the output directory
type PathValidator struct {
	configuredDirectory string
}

// NewPathValidator creates a validator for the given directory
func NewPathValidator(configuredDirectory string) (*PathValidator, error) {
	if configuredDirectory == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	return &PathValidator{
		configuredDirectory: filepath.Clean(configuredDirectory),
	}, nil
}

// GetConfiguredDirectory returns the configured directory path
func (v *PathValidator) GetConfiguredDirectory() string {
	return v.configuredDirectory
}

// NormalizeName returns name as a clean path relative to the configured
// directory. Absolute names are accepted only when they point inside it.
// The result always ends in ".pdf".
func (v *PathValidator) NormalizeName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\x00", "")
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if filepath.IsAbs(name) {
		rel, err := filepath.Rel(v.configuredDirectory, filepath.Clean(name))
		if err != nil {
			return "", fmt.Errorf("failed to resolve path: %w", err)
		}
		name = rel
	}

	clean := filepath.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) ||
		filepath.IsAbs(clean) {
		return "", fmt.Errorf("path is outside configured directory: %s", name)
	}

	if !strings.EqualFold(filepath.Ext(clean), ".pdf") {
		clean += ".pdf"
	}

	return clean, nil
}

package download

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

const (
	DefaultDirPerm  = 0o750
	DefaultFilePerm = 0o600
)

// FileSink saves artifacts into an output directory. The artifact name may
// include sub-directories but never escapes the directory.
type FileSink struct {
	fs        afero.Fs
	validator *PathValidator
}

// NewFileSink writes into dir on the OS filesystem
func NewFileSink(dir string) (*FileSink, error) {
	return NewFileSinkFs(afero.NewOsFs(), dir)
}

// NewFileSinkFs writes into dir on the given filesystem
func NewFileSinkFs(fs afero.Fs, dir string) (*FileSink, error) {
	validator, err := NewPathValidator(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}
	if err := fs.MkdirAll(dir, DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("cannot create output directory %s: %w", dir, err)
	}
	return &FileSink{fs: fs, validator: validator}, nil
}

// Path returns where an artifact with the given name would be written
func (s *FileSink) Path(name string) (string, error) {
	rel, err := s.validator.NormalizeName(name)
	if err != nil {
		return "", fmt.Errorf("security validation failed: %w", err)
	}
	return filepath.Join(s.validator.GetConfiguredDirectory(), rel), nil
}

// Deliver writes the artifact, replacing any previous file of that name
func (s *FileSink) Deliver(_ context.Context, a *Artifact) error {
	if err := a.Validate(); err != nil {
		return err
	}

	path, err := s.Path(a.Name)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(filepath.Dir(path), DefaultDirPerm); err != nil {
		return fmt.Errorf("cannot create directory for %s: %w", path, err)
	}
	if err := afero.WriteFile(s.fs, path, a.Data, DefaultFilePerm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

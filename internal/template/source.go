// Package template loads the static PDF form each layout is stamped onto.
package template

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// DefaultMaxSize bounds template size; the real forms are well under 1MB
const DefaultMaxSize = 10 * 1024 * 1024

// ErrNotFound is returned when a template does not exist in the source
var ErrNotFound = errors.New("template not found")

// Source loads template bytes by file name
type Source interface {
	Load(ctx context.Context, name string) ([]byte, error)
}

// DirSource reads templates from a directory. Names are resolved inside the
// directory only.
type DirSource struct {
	fs      afero.Fs
	dir     string
	maxSize int64
}

// NewDirSource reads from dir on the OS filesystem
func NewDirSource(dir string, maxSize int64) (*DirSource, error) {
	return NewDirSourceFs(afero.NewOsFs(), dir, maxSize)
}

// NewDirSourceFs reads from dir on the given filesystem
func NewDirSourceFs(fs afero.Fs, dir string, maxSize int64) (*DirSource, error) {
	if dir == "" {
		return nil, fmt.Errorf("template directory cannot be empty")
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &DirSource{
		fs:      afero.NewBasePathFs(fs, dir),
		dir:     dir,
		maxSize: maxSize,
	}, nil
}

// Load reads the named template
func (s *DirSource) Load(_ context.Context, name string) ([]byte, error) {
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	info, err := s.fs.Stat(clean)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, name, s.dir)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot access template %s: %w", name, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("template path is a directory: %s", name)
	}
	if info.Size() > s.maxSize {
		return nil, fmt.Errorf("template too large: %d bytes (max: %d bytes)", info.Size(), s.maxSize)
	}

	data, err := afero.ReadFile(s.fs, clean)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", name, err)
	}
	return data, nil
}

// HTTPSource fetches templates relative to a base URL, like a browser app
// fetching its own static assets
type HTTPSource struct {
	base    *url.URL
	client  *http.Client
	maxSize int64
}

// NewHTTPSource creates a source for baseURL. A nil client gets a 10s timeout.
func NewHTTPSource(baseURL string, client *http.Client, maxSize int64) (*HTTPSource, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid template URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("template URL must be http or https: %s", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &HTTPSource{base: u, client: client, maxSize: maxSize}, nil
}

// Load fetches the named template
func (s *HTTPSource) Load(ctx context.Context, name string) ([]byte, error) {
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	target := s.base.JoinPath(clean)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build template request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch template %s: %w", target, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, target)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("failed to fetch template %s: status %d", target, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", target, err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("template too large: more than %d bytes", s.maxSize)
	}
	return data, nil
}

// cleanName rejects names that could leave the template root
func cleanName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("template name cannot be empty")
	}
	clean := path.Clean("/" + name)[1:]
	if clean == "" || clean != strings.TrimPrefix(name, "/") || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid template name: %s", name)
	}
	return clean, nil
}

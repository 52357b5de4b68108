package template

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/a3tai/attestation-stamper/internal/testpdf"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirSource_Load(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := filepath.FromSlash("/templates")
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "form.pdf"), testpdf.A4(), 0o644))
	require.NoError(t, afero.WriteFile(fs, filepath.FromSlash("/secret.pdf"), []byte("secret"), 0o644))
	require.NoError(t, fs.MkdirAll(filepath.Join(dir, "folder.pdf"), 0o755))

	src, err := NewDirSourceFs(fs, dir, 0)
	require.NoError(t, err)

	data, err := src.Load(context.Background(), "form.pdf")
	require.NoError(t, err)
	assert.Equal(t, testpdf.A4(), data)

	_, err = src.Load(context.Background(), "missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = src.Load(context.Background(), "../secret.pdf")
	assert.Error(t, err)

	_, err = src.Load(context.Background(), "folder.pdf")
	assert.Error(t, err)

	_, err = src.Load(context.Background(), "")
	assert.Error(t, err)

	_, err = NewDirSourceFs(fs, "", 0)
	assert.Error(t, err)
}

func TestDirSource_MaxSize(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, filepath.FromSlash("/t/big.pdf"), make([]byte, 2048), 0o644))

	src, err := NewDirSourceFs(fs, filepath.FromSlash("/t"), 1024)
	require.NoError(t, err)

	_, err = src.Load(context.Background(), "big.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestHTTPSource_Load(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/static/form.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(testpdf.A4())
		case "/static/broken.pdf":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	src, err := NewHTTPSource(ts.URL+"/static/", ts.Client(), 0)
	require.NoError(t, err)

	data, err := src.Load(context.Background(), "form.pdf")
	require.NoError(t, err)
	assert.Equal(t, testpdf.A4(), data)

	_, err = src.Load(context.Background(), "missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = src.Load(context.Background(), "broken.pdf")
	assert.Error(t, err)

	small, err := NewHTTPSource(ts.URL+"/static", ts.Client(), 16)
	require.NoError(t, err)
	_, err = small.Load(context.Background(), "form.pdf")
	assert.Error(t, err)
}

func TestHTTPSource_CancelledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(testpdf.A4())
	}))
	defer ts.Close()

	src, err := NewHTTPSource(ts.URL, ts.Client(), 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Load(ctx, "form.pdf")
	assert.Error(t, err)
}

func TestNewHTTPSource_InvalidURL(t *testing.T) {
	_, err := NewHTTPSource("ftp://example.com", nil, 0)
	assert.Error(t, err)
	_, err = NewHTTPSource("://bad", nil, 0)
	assert.Error(t, err)
}

type countingSource struct {
	calls atomic.Int32
	err   error
}

func (s *countingSource) Load(_ context.Context, name string) ([]byte, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return []byte(name), nil
}

func TestCachedSource(t *testing.T) {
	next := &countingSource{}
	c := NewCachedSource(next, 2)

	for i := 0; i < 3; i++ {
		data, err := c.Load(context.Background(), "a")
		require.NoError(t, err)
		assert.Equal(t, "a", string(data))
	}
	assert.Equal(t, int32(1), next.calls.Load())

	_, _ = c.Load(context.Background(), "b")
	_, _ = c.Load(context.Background(), "a") // a is now most recent
	_, _ = c.Load(context.Background(), "c") // evicts b
	assert.Equal(t, int32(3), next.calls.Load())

	_, _ = c.Load(context.Background(), "b")
	assert.Equal(t, int32(4), next.calls.Load())

	stats := c.Stats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, 2, stats.Capacity)
	assert.Equal(t, int64(3), stats.Hits)
	assert.Equal(t, int64(4), stats.Misses)
}

func TestCachedSource_ErrorsNotCached(t *testing.T) {
	next := &countingSource{err: errors.New("boom")}
	c := NewCachedSource(next, 0)

	_, err := c.Load(context.Background(), "a")
	assert.Error(t, err)
	_, err = c.Load(context.Background(), "a")
	assert.Error(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
	assert.Equal(t, 0, c.Stats().Size)
}

func TestInspect(t *testing.T) {
	info, err := Inspect(testpdf.Template(612, 792))
	require.NoError(t, err)
	assert.Equal(t, 1, info.Pages)
	assert.InDelta(t, 612, info.Width, 0.001)
	assert.InDelta(t, 792, info.Height, 0.001)

	info, err = Inspect(testpdf.A4())
	require.NoError(t, err)
	assert.InDelta(t, A4Width, info.Width, 0.001)
}

func TestInspect_Invalid(t *testing.T) {
	_, err := Inspect(nil)
	assert.Error(t, err)

	_, err = Inspect([]byte("definitely not a pdf"))
	assert.Error(t, err)
}

func TestPageText(t *testing.T) {
	runs, err := PageText(testpdf.Template(612, 792), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	heading := runs[0]
	assert.Equal(t, testpdf.Heading, heading.Text)
	assert.Equal(t, "Helvetica", heading.Font)
	assert.InDelta(t, 12, heading.Size, 0.001)
	assert.InDelta(t, 72, heading.X, 0.001)
	assert.InDelta(t, 712, heading.Y, 0.001)
}

func TestPageText_Invalid(t *testing.T) {
	_, err := PageText(testpdf.A4(), 2)
	assert.Error(t, err)

	_, err = PageText(testpdf.A4(), 0)
	assert.Error(t, err)

	_, err = PageText([]byte("definitely not a pdf"), 1)
	assert.Error(t, err)
}

package stamper

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/a3tai/attestation-stamper/internal/attestation"
	"github.com/a3tai/attestation-stamper/internal/download"
	"github.com/a3tai/attestation-stamper/internal/layout"
	"github.com/a3tai/attestation-stamper/internal/signature"
	"github.com/a3tai/attestation-stamper/internal/template"
	"github.com/a3tai/attestation-stamper/internal/testpdf"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2020, time.April, 5, 14, 7, 0, 0, time.UTC)

func builtin(t *testing.T, id string) *layout.Layout {
	t.Helper()
	reg, err := layout.NewRegistry(layout.DefaultID, layout.Builtin()...)
	require.NoError(t, err)
	l, err := reg.Get(id)
	require.NoError(t, err)
	return l
}

func validRecord() attestation.Record {
	return attestation.Record{
		Name:       "Jean Dupont",
		BirthDay:   "1990-05-12",
		BirthTown:  "Lyon",
		Address:    "1 rue de la Paix",
		Town:       "Paris",
		PostalCode: "75002",
		Purpose:    layout.PurposeHealth,
		Signature:  testpdf.SignatureDataURL(300, 150),
	}
}

func newTestStamper(t *testing.T, opts ...Option) *Stamper {
	t.Helper()
	fs := afero.NewMemMapFs()
	dir := filepath.FromSlash("/templates")
	for _, l := range layout.Builtin() {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, l.Template), testpdf.A4(), 0o644))
	}
	src, err := template.NewDirSourceFs(fs, dir, 0)
	require.NoError(t, err)

	reg, err := layout.NewRegistry(layout.DefaultID, layout.Builtin()...)
	require.NoError(t, err)

	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(reg, src, opts...)
}

func TestPlan_EndToEnd(t *testing.T) {
	l := builtin(t, layout.IDApril02)
	rec := validRecord()
	rec.BirthDay = "12/05/1990"

	o, err := Plan(rec, l, fixedNow, template.A4Width)
	require.NoError(t, err)

	tests := []struct {
		text string
		x, y float64
	}{
		{"Jean Dupont", 123, 686},
		{"12/05/1990", 123, 661},
		{"Lyon", 92, 638},
		{"1 rue de la Paix", 134, 613},
		{"75002", 134, 598},
		{"05/04/2020", 92, 200},
		{"14h07", 200, 201},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			found := o.Find(tt.text)
			require.Len(t, found, 1)
			assert.Equal(t, tt.x, found[0].X)
			assert.Equal(t, tt.y, found[0].Y)
		})
	}

	// Town is printed twice: in the address block and next to "Fait à"
	towns := o.Find("Paris")
	require.Len(t, towns, 2)
	assert.Equal(t, 583.0, towns[0].Y)
	assert.Equal(t, 226.0, towns[1].Y)

	require.Len(t, o.Marks, 1)
	assert.Equal(t, TextStamp{Text: "x", X: 76, Y: 436, Size: 19}, o.Marks[0])

	require.NotNil(t, o.Image)
	assert.Equal(t, 340.0, o.Image.X)
	assert.Equal(t, 150.0, o.Image.Y)
	assert.Equal(t, 100.0, o.Image.Width)
	assert.InDelta(t, 50.0, o.Image.Height, 0.0001)
}

func TestPlan_MarkOnlyAtPurpose(t *testing.T) {
	for _, l := range layout.Builtin() {
		for _, p := range l.Purposes {
			t.Run(l.ID+"/"+string(p), func(t *testing.T) {
				rec := validRecord()
				rec.Purpose = p

				o, err := Plan(rec, l, fixedNow, template.A4Width)
				require.NoError(t, err)

				want, ok := l.Mark(p)
				require.True(t, ok)
				require.Len(t, o.Marks, 1)
				assert.Equal(t, want.X, o.Marks[0].X)
				assert.Equal(t, want.Y, o.Marks[0].Y)
				assert.Equal(t, l.Glyph, o.Marks[0].Text)
			})
		}
	}
}

func TestPlan_March24MarkTable(t *testing.T) {
	l := builtin(t, layout.IDMarch24)
	want := map[layout.Purpose]float64{
		layout.PurposePro:             528,
		layout.PurposeGrocery:         478,
		layout.PurposeHealth:          437,
		layout.PurposeFamily:          401,
		layout.PurposeSport:           345,
		layout.PurposeJudicial:        298,
		layout.PurposeGeneralInterest: 262,
	}
	for p, y := range want {
		rec := validRecord()
		rec.Purpose = p
		o, err := Plan(rec, l, fixedNow, template.A4Width)
		require.NoError(t, err)
		require.Len(t, o.Marks, 1, p)
		assert.Equal(t, 77.0, o.Marks[0].X, p)
		assert.Equal(t, y, o.Marks[0].Y, p)
	}
}

func TestPlan_UnmappedPurpose(t *testing.T) {
	l := builtin(t, layout.IDMarch17)
	rec := validRecord()
	rec.Purpose = layout.PurposeJudicial

	o, err := Plan(rec, l, fixedNow, template.A4Width)
	require.NoError(t, err)
	assert.Empty(t, o.Marks)
	assert.NotEmpty(t, o.Texts)
}

func TestPlan_BirthDayFormatting(t *testing.T) {
	l := builtin(t, layout.IDMarch24)
	tests := []struct {
		in   string
		want string
	}{
		{"1990-05-12", "12/05/1990"},
		{"12/05/1990", "12/05/1990"},
		{"2000-02-29", "29/02/2000"},
		{"1985-01-01T00:00:00Z", "01/01/1985"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			rec := validRecord()
			rec.BirthDay = tt.in
			o, err := Plan(rec, l, fixedNow, template.A4Width)
			require.NoError(t, err)
			found := o.Find(tt.want)
			require.Len(t, found, 1)
			assert.Equal(t, 661.0, found[0].Y)
		})
	}
}

func TestPlan_JoinedPlacements(t *testing.T) {
	o, err := Plan(validRecord(), builtin(t, layout.IDMarch24), fixedNow, template.A4Width)
	require.NoError(t, err)
	found := o.Find("1 rue de la Paix 75002 Paris")
	require.Len(t, found, 1)
	assert.Equal(t, 134.0, found[0].X)
	assert.Equal(t, 613.0, found[0].Y)

	o, err = Plan(validRecord(), builtin(t, layout.IDMarch17), fixedNow, template.A4Width)
	require.NoError(t, err)
	assert.Len(t, o.Find("75002 Paris"), 1)
	assert.Len(t, o.Find("5"), 1, "day of month without padding")
	assert.Len(t, o.Find("04"), 1)
}

func TestPlan_SignatureScaling(t *testing.T) {
	tests := []struct {
		name     string
		layoutID string
		w, h     int
		wantW    float64
		wantH    float64
		wantX    float64
	}{
		{"march17 right aligned", layout.IDMarch17, 300, 150, 150, 75, template.A4Width - 150 - 50},
		{"march24 wide", layout.IDMarch24, 300, 150, 150, 75, 135},
		{"march24 tall", layout.IDMarch24, 200, 400, 150, 300, 135},
		{"april02", layout.IDApril02, 300, 150, 100, 50, 340},
		{"april02 small source", layout.IDApril02, 50, 20, 100, 40, 340},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			rec.Signature = testpdf.SignatureDataURL(tt.w, tt.h)

			o, err := Plan(rec, builtin(t, tt.layoutID), fixedNow, template.A4Width)
			require.NoError(t, err)
			require.NotNil(t, o.Image)
			assert.InDelta(t, tt.wantW, o.Image.Width, 0.0001)
			assert.InDelta(t, tt.wantH, o.Image.Height, 0.0001)
			assert.InDelta(t, tt.wantX, o.Image.X, 0.0001)
			assert.InDelta(t, float64(tt.w)/float64(tt.h), o.Image.Width/o.Image.Height, 0.0001)
			assert.InDelta(t, tt.wantW/float64(tt.w), o.Image.Scale(), 0.0001)
		})
	}
}

func TestPlan_EmptySignature(t *testing.T) {
	rec := validRecord()
	rec.Signature = ""
	o, err := Plan(rec, builtin(t, layout.IDApril02), fixedNow, template.A4Width)
	require.NoError(t, err)
	assert.Nil(t, o.Image)
}

func TestPlan_BlankPadSignature(t *testing.T) {
	uri, err := signature.NewPad(signature.DefaultWidth, signature.DefaultHeight).DataURL()
	require.NoError(t, err)

	rec := validRecord()
	rec.Signature = uri
	o, err := Plan(rec, builtin(t, layout.IDApril02), fixedNow, template.A4Width)
	require.NoError(t, err)
	require.NotNil(t, o.Image)
	assert.Equal(t, 100.0, o.Image.Width)
}

func TestPlan_MalformedSignature(t *testing.T) {
	rec := validRecord()
	rec.Signature = "data:image/png;base64,not-base64!"
	_, err := Plan(rec, builtin(t, layout.IDApril02), fixedNow, template.A4Width)
	assert.ErrorIs(t, err, signature.ErrMalformedSignature)
}

func TestWinAnsi(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hélène Müller", "Hélène Müller"},
		{"Čapek Ştefan", "Capek Stefan"},
		{"Łukasz", "?ukasz"},
		{"tab\tsep", "tab sep"},
		{"line\nbreak", "line break"},
		{"crlf\r\nend", "crlf  end"},
		{"nul\x00byte", "nul byte"},
		{"nbsp\u00a0kept", "nbsp kept"},
		{"漢", "?"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, winAnsi(tt.in), tt.in)
	}
}

func TestOverlay_StringHasNoPersonalData(t *testing.T) {
	o, err := Plan(validRecord(), builtin(t, layout.IDApril02), fixedNow, template.A4Width)
	require.NoError(t, err)
	s := o.String()
	assert.NotContains(t, s, "Dupont")
	assert.Contains(t, s, "Image: true")
}

func TestPDFCPURenderer_Render(t *testing.T) {
	o, err := Plan(validRecord(), builtin(t, layout.IDApril02), fixedNow, template.A4Width)
	require.NoError(t, err)

	r := NewPDFCPURenderer("")
	out, err := r.Render(testpdf.A4(), o)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.NotEqual(t, testpdf.A4(), out)

	pages, err := r.PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)

	info, err := template.Inspect(out)
	require.NoError(t, err)
	assert.InDelta(t, template.A4Width, info.Width, 0.01)

	runs := pageText(t, out)
	assertRunAt(t, runs, "Jean Dupont", 123, 686, 10)
	assertRunAt(t, runs, "x", 76, 436, 19)
	assertRunAt(t, runs, "05/04/2020", 92, 200, 10)
	assertRunAt(t, runs, "14h07", 200, 201, 10)
}

func TestPDFCPURenderer_EmptyOverlay(t *testing.T) {
	out, err := NewPDFCPURenderer("").Render(testpdf.A4(), &Overlay{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, testpdf.A4(), out)

	_, err = NewPDFCPURenderer("").Render(nil, &Overlay{Page: 1})
	assert.Error(t, err)
}

func TestImageDescription(t *testing.T) {
	img := imageDescription(&ImageStamp{SourceWidth: 300, Width: 150, X: 135, Y: 100})
	assert.Contains(t, img, "scalefactor:0.500000 abs")
	assert.Contains(t, img, "offset:135.00 100.00")
	assert.Contains(t, img, "position:bl")
}

func TestNewPDFCPURenderer_Font(t *testing.T) {
	assert.Equal(t, DefaultFont, NewPDFCPURenderer("").font)
	assert.Equal(t, DefaultFont, NewPDFCPURenderer("Comic Sans").font)
	assert.Equal(t, "Courier", NewPDFCPURenderer("Courier").font)
}

func pageText(t *testing.T, doc []byte) []template.TextRun {
	t.Helper()
	runs, err := template.PageText(doc, 1)
	require.NoError(t, err)
	return runs
}

func runsOf(runs []template.TextRun, text string) []template.TextRun {
	var out []template.TextRun
	for _, r := range runs {
		if r.Text == text {
			out = append(out, r)
		}
	}
	return out
}

// assertRunAt checks text is drawn exactly once, with its baseline at (x, y)
func assertRunAt(t *testing.T, runs []template.TextRun, text string, x, y, size float64) {
	t.Helper()
	found := runsOf(runs, text)
	if !assert.Len(t, found, 1, "runs of %q in %+v", text, runs) {
		return
	}
	assert.InDelta(t, x, found[0].X, 0.01, text)
	assert.InDelta(t, y, found[0].Y, 0.01, text)
	assert.InDelta(t, size, found[0].Size, 0.01, text)
}

func TestPDFCPURenderer_Baselines(t *testing.T) {
	s := newTestStamper(t)
	rec := validRecord()
	rec.BirthDay = "12/05/1990"

	out, err := s.Stamp(context.Background(), layout.IDMarch24, rec)
	require.NoError(t, err)

	runs := pageText(t, out)
	assertRunAt(t, runs, testpdf.Heading, 72, template.A4Height-80, 12)
	assertRunAt(t, runs, "Jean Dupont", 123, 686, 10)
	assertRunAt(t, runs, "12/05/1990", 123, 661, 10)
	assertRunAt(t, runs, "1 rue de la Paix 75002 Paris", 134, 613, 10)
	assertRunAt(t, runs, "Paris", 111, 226, 10)
	assertRunAt(t, runs, "05", 92, 200, 10)
	assertRunAt(t, runs, "04", 114, 200, 10)
	assertRunAt(t, runs, "x", 77, 437, 19)

	for _, r := range runs {
		if r.Text != testpdf.Heading {
			assert.Equal(t, DefaultFont, r.Font, r.Text)
		}
	}
}

func TestPDFCPURenderer_SingleMarkPerPurpose(t *testing.T) {
	s := newTestStamper(t)

	for _, l := range layout.Builtin() {
		for _, p := range l.Purposes {
			pt, ok := l.Mark(p)
			if !ok {
				continue
			}
			t.Run(l.ID+"/"+string(p), func(t *testing.T) {
				rec := validRecord()
				rec.Purpose = p
				rec.Signature = ""

				out, err := s.Stamp(context.Background(), l.ID, rec)
				require.NoError(t, err)
				assertRunAt(t, pageText(t, out), l.Glyph, pt.X, pt.Y, l.MarkSize)
			})
		}
	}
}

func TestPDFCPURenderer_TextShownVerbatim(t *testing.T) {
	o := &Overlay{
		Page: 1,
		Texts: []TextStamp{
			{Text: "Bat %p appt %P", X: 134, Y: 613, Size: 10},
			{Text: "100% (sure) \\ done", X: 134, Y: 598, Size: 10},
			{Text: "first\nsecond", X: 134, Y: 583, Size: 10},
			{Text: "Hélène", X: 123, Y: 686, Size: 10},
		},
	}

	out, err := NewPDFCPURenderer("Courier").Render(testpdf.A4(), o)
	require.NoError(t, err)

	runs := pageText(t, out)
	assertRunAt(t, runs, "Bat %p appt %P", 134, 613, 10)
	assertRunAt(t, runs, "100% (sure) \\ done", 134, 598, 10)
	assertRunAt(t, runs, "first second", 134, 583, 10)
	assertRunAt(t, runs, "Hélène", 123, 686, 10)
	assert.Empty(t, runsOf(runs, "1"))
	assert.Equal(t, "Courier", runsOf(runs, "Hélène")[0].Font)
}

func TestPDFCPURenderer_IgnoresTemplateGraphicsState(t *testing.T) {
	// the template leaves a scaled coordinate system behind
	tpl := testpdf.TemplateContent(template.A4Width, template.A4Height,
		"2 0 0 2 10 10 cm BT /F1 12 Tf 5 5 Td (form) Tj ET")
	o := &Overlay{Page: 1, Marks: []TextStamp{{Text: "x", X: 76, Y: 436, Size: 19}}}

	out, err := NewPDFCPURenderer("").Render(tpl, o)
	require.NoError(t, err)

	runs := pageText(t, out)
	assertRunAt(t, runs, "form", 20, 20, 24)
	assertRunAt(t, runs, "x", 76, 436, 19)
}

func TestPDFCPURenderer_MissingPage(t *testing.T) {
	o := &Overlay{Page: 3, Texts: []TextStamp{{Text: "x", X: 1, Y: 1, Size: 10}}}
	_, err := NewPDFCPURenderer("").Render(testpdf.A4(), o)
	assert.Error(t, err)
}

func TestStamper_Generate(t *testing.T) {
	s := newTestStamper(t)

	for _, l := range layout.Builtin() {
		t.Run(l.ID, func(t *testing.T) {
			rec := validRecord()
			rec.Purpose = l.Purposes[0]

			a, err := s.Generate(context.Background(), l.ID, rec)
			require.NoError(t, err)
			require.NoError(t, a.Validate())
			assert.Equal(t, download.DefaultFileName, a.Name)
			assert.Equal(t, download.MIMETypePDF, a.MIMEType)

			info, err := template.Inspect(a.Data)
			require.NoError(t, err)
			assert.Equal(t, 1, info.Pages)
		})
	}
}

func TestStamper_DefaultLayout(t *testing.T) {
	s := newTestStamper(t)
	out, err := s.Stamp(context.Background(), "", validRecord())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestStamper_EmptySignature(t *testing.T) {
	s := newTestStamper(t)
	rec := validRecord()
	rec.Signature = ""
	_, err := s.Stamp(context.Background(), layout.IDMarch24, rec)
	assert.NoError(t, err)
}

type recordingRenderer struct {
	overlay *Overlay
	err     error
}

func (r *recordingRenderer) Render(template []byte, o *Overlay) ([]byte, error) {
	r.overlay = o
	if r.err != nil {
		return nil, r.err
	}
	return template, nil
}

func TestStamper_Errors(t *testing.T) {
	renderErr := errors.New("render failed")

	tests := []struct {
		name     string
		layoutID string
		mutate   func(*attestation.Record)
		renderer *recordingRenderer
		wantOp   string
	}{
		{
			name:     "unknown layout",
			layoutID: "1999-01-01",
			wantOp:   OpLayout,
		},
		{
			name:     "malformed signature",
			layoutID: layout.IDApril02,
			mutate:   func(r *attestation.Record) { r.Signature = "data:text/plain;base64,aGVsbG8=" },
			wantOp:   OpSignature,
		},
		{
			name:     "renderer failure",
			layoutID: layout.IDApril02,
			renderer: &recordingRenderer{err: renderErr},
			wantOp:   OpRender,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.renderer != nil {
				opts = append(opts, WithRenderer(tt.renderer))
			}
			s := newTestStamper(t, opts...)
			rec := validRecord()
			if tt.mutate != nil {
				tt.mutate(&rec)
			}

			out, err := s.Stamp(context.Background(), tt.layoutID, rec)
			assert.Nil(t, out)

			var serr *Error
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tt.wantOp, serr.Op)
		})
	}
}

func TestStamper_MissingTemplate(t *testing.T) {
	reg, err := layout.NewRegistry(layout.DefaultID, layout.Builtin()...)
	require.NoError(t, err)
	src, err := template.NewDirSourceFs(afero.NewMemMapFs(), "/empty", 0)
	require.NoError(t, err)

	_, err = New(reg, src).Stamp(context.Background(), "", validRecord())
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, OpTemplate, serr.Op)
	assert.ErrorIs(t, err, template.ErrNotFound)
}

func TestStamper_UsesClockAndLogsWithoutPersonalData(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	rr := &recordingRenderer{}

	s := newTestStamper(t, WithRenderer(rr), WithLogger(logger))
	rec := validRecord()
	rec.Purpose = layout.PurposeGeneralInterest

	_, err := s.Stamp(context.Background(), layout.IDMarch17, rec)
	require.NoError(t, err)

	require.NotNil(t, rr.overlay)
	assert.Empty(t, rr.overlay.Marks)
	assert.Len(t, rr.overlay.Find("5"), 1)

	out := logs.String()
	assert.Contains(t, out, "no mark position")
	for _, secret := range []string{"Dupont", "rue de la Paix", "75002", "Lyon"} {
		assert.False(t, strings.Contains(out, secret), "log leaks %q", secret)
	}
}

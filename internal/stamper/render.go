package stamper

import (
	"bytes"
	"fmt"
	"strconv"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	pdffont "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/charmap"
)

// DefaultFont is a standard Type 1 font every PDF viewer has
const DefaultFont = "Helvetica"

// Renderer draws an overlay onto a template and serializes the result
type Renderer interface {
	Render(template []byte, o *Overlay) ([]byte, error)
}

var disableConfigDir sync.Once

// PDFCPURenderer draws text and marks as plain text operators appended to
// the page content, so each baseline lands exactly on its coordinates and
// the text is shown as is. The signature is a pdfcpu image stamp anchored
// bottom-left at absolute offsets.
type PDFCPURenderer struct {
	font string
}

// NewPDFCPURenderer creates a renderer using the given standard font.
// Fonts outside the 14 standard ones fall back to DefaultFont.
func NewPDFCPURenderer(name string) *PDFCPURenderer {
	// pdfcpu would otherwise create a config directory under $HOME
	disableConfigDir.Do(api.DisableConfigDir)

	if !font.IsCoreFont(name) {
		name = DefaultFont
	}
	return &PDFCPURenderer{font: name}
}

func (r *PDFCPURenderer) configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Render draws o onto the template and returns the new document
func (r *PDFCPURenderer) Render(template []byte, o *Overlay) ([]byte, error) {
	if len(template) == 0 {
		return nil, fmt.Errorf("template is empty")
	}

	texts := make([]TextStamp, 0, len(o.Texts)+len(o.Marks))
	texts = append(texts, o.Texts...)
	texts = append(texts, o.Marks...)

	if len(texts) == 0 && o.Image == nil {
		return append([]byte(nil), template...), nil
	}

	page := o.Page
	if page < 1 {
		page = 1
	}

	conf := r.configuration()
	conf.Cmd = model.ADDWATERMARKS
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(template), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	if page > ctx.PageCount {
		return nil, fmt.Errorf("template has no page %d", page)
	}

	if o.Image != nil {
		wm, err := api.ImageWatermarkForReader(bytes.NewReader(o.Image.Data), imageDescription(o.Image),
			true, false, types.POINTS)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare signature stamp: %w", err)
		}
		if err := pdfcpu.AddWatermarksSliceMap(ctx, map[int][]*model.Watermark{page: {wm}}); err != nil {
			return nil, fmt.Errorf("failed to stamp signature on page %d: %w", page, err)
		}
	}

	if len(texts) > 0 {
		if err := r.drawText(ctx, page, texts); err != nil {
			return nil, fmt.Errorf("failed to draw text on page %d: %w", page, err)
		}
	}

	var out bytes.Buffer
	if err := api.WriteContext(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to write document: %w", err)
	}
	return out.Bytes(), nil
}

// PageCount returns the number of pages of a rendered document
func (r *PDFCPURenderer) PageCount(doc []byte) (int, error) {
	return api.PageCount(bytes.NewReader(doc), r.configuration())
}

func (r *PDFCPURenderer) drawText(ctx *model.Context, pageNr int, texts []TextStamp) error {
	page, _, inherited, err := ctx.PageDict(pageNr, false)
	if err != nil {
		return err
	}

	fontRef, err := pdffont.EnsureFontDict(ctx.XRefTable, r.font, "", "", false, nil)
	if err != nil {
		return err
	}

	fontID, err := addFontResource(ctx, page, inherited, *fontRef)
	if err != nil {
		return err
	}

	content, err := textContent(fontID, texts)
	if err != nil {
		return err
	}
	return wrapPageContent(ctx, page, content)
}

// addFontResource registers ref in the page font resources under a free name
func addFontResource(ctx *model.Context, page types.Dict, inherited *model.InheritedPageAttrs,
	ref types.IndirectRef,
) (string, error) {
	res := inherited.Resources
	if res == nil {
		res = types.NewDict()
	}

	fonts := types.NewDict()
	if o, found := res.Find("Font"); found {
		d, err := ctx.DereferenceDict(o)
		if err != nil {
			return "", err
		}
		if d != nil {
			fonts = d
		}
	}

	var id string
	for i := 0; ; i++ {
		id = "FAtt" + strconv.Itoa(i)
		if _, taken := fonts.Find(id); !taken {
			break
		}
	}
	fonts.Insert(id, ref)

	res.Update("Font", fonts)
	page.Update("Resources", res)
	return id, nil
}

// textContent renders one BT/ET block per stamp, with the baseline at (X, Y)
// in default user space
func textContent(fontID string, texts []TextStamp) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString("0 g")
	for _, t := range texts {
		encoded, err := charmap.Windows1252.NewEncoder().String(winAnsi(t.Text))
		if err != nil {
			return nil, fmt.Errorf("failed to encode text at %v,%v: %w", t.X, t.Y, err)
		}
		escaped, err := types.Escape(encoded)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, " BT /%s %s Tf %s %s Td (%s) Tj ET", fontID, coord(t.Size), coord(t.X), coord(t.Y), *escaped)
	}
	return b.Bytes(), nil
}

// wrapPageContent brackets the existing page content in q/Q so whatever
// state it leaves behind cannot move the overlay, then appends the overlay
func wrapPageContent(ctx *model.Context, page types.Dict, overlay []byte) error {
	open, err := ctx.StreamDictIndRef([]byte("q"))
	if err != nil {
		return err
	}
	closeAndDraw, err := ctx.StreamDictIndRef(append([]byte("Q "), overlay...))
	if err != nil {
		return err
	}

	contents := types.Array{*open}
	if o, found := page.Find("Contents"); found {
		obj, err := ctx.Dereference(o)
		if err != nil {
			return err
		}
		switch v := obj.(type) {
		case types.Array:
			contents = append(contents, v...)
		case types.StreamDict:
			ref, ok := o.(types.IndirectRef)
			if !ok {
				return fmt.Errorf("page content stream is not an indirect object")
			}
			contents = append(contents, ref)
		default:
			return fmt.Errorf("unexpected page content of type %T", obj)
		}
	}
	contents = append(contents, *closeAndDraw)

	page.Update("Contents", contents)
	return nil
}

func imageDescription(img *ImageStamp) string {
	return fmt.Sprintf("position:bl, offset:%s %s, scalefactor:%s abs, rotation:0, opacity:1",
		coord(img.X), coord(img.Y), strconv.FormatFloat(img.Scale(), 'f', 6, 64))
}

func coord(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

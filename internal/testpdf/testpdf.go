// Package testpdf builds small fixtures for tests: a single-page PDF form
// stand-in and signature images.
package testpdf

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
)

// Heading is the text drawn on every generated template page
const Heading = "ATTESTATION DE DEPLACEMENT DEROGATOIRE"

// Template returns a valid single-page PDF of the given size with one line
// of Helvetica text, standing in for the official form
func Template(width, height float64) []byte {
	return TemplateContent(width, height, fmt.Sprintf("BT /F1 12 Tf 72 %s Td (%s) Tj ET", num(height-80), Heading))
}

// TemplateContent returns a single-page PDF drawing content, with Helvetica
// available as /F1
func TemplateContent(width, height float64, content string) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %s %s] "+
			"/Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>", num(width), num(height)),
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return buf.Bytes()
}

// A4 returns a template with A4 portrait dimensions
func A4() []byte {
	return Template(595.28, 841.89)
}

// PNG encodes a w x h image with a diagonal black line
func PNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x*h/w, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// SignatureDataURL returns PNG(w, h) as a data URI
func SignatureDataURL(w, h int) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(PNG(w, h))
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

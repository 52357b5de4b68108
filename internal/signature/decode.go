package signature

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG for image.Decode
	_ "image/png"  // register PNG for image.Decode
	"strings"
)

const (
	pngPrefix = "data:image/png;base64,"

	FormatPNG  = "png"
	FormatJPEG = "jpeg"

	// MaxImageSize bounds each side of a supplied signature, in pixels
	MaxImageSize = 4096
)

// ErrMalformedSignature is returned for data URIs that are not a base64 PNG
// or JPEG image
var ErrMalformedSignature = errors.New("malformed signature image")

// Image is a decoded signature ready to be embedded in a document
type Image struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// Decode parses a data:image/png or data:image/jpeg base64 URI, as produced
// by canvas.toDataURL(), and checks the payload is a decodable image.
func Decode(dataURL string) (*Image, error) {
	header, payload, ok := strings.Cut(strings.TrimSpace(dataURL), ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing data URI separator", ErrMalformedSignature)
	}

	mediaType, found := strings.CutPrefix(header, "data:")
	if !found {
		return nil, fmt.Errorf("%w: not a data URI", ErrMalformedSignature)
	}
	mediaType, found = strings.CutSuffix(mediaType, ";base64")
	if !found {
		return nil, fmt.Errorf("%w: only base64 data URIs are supported", ErrMalformedSignature)
	}

	var want string
	switch strings.ToLower(mediaType) {
	case "image/png":
		want = FormatPNG
	case "image/jpeg", "image/jpg":
		want = FormatJPEG
	default:
		return nil, fmt.Errorf("%w: unsupported media type %q", ErrMalformedSignature, mediaType)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	// Check the header before decoding: a small payload can declare a huge bitmap
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if format != want {
		return nil, fmt.Errorf("%w: declared %s but contains %s", ErrMalformedSignature, want, format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrMalformedSignature)
	}
	if cfg.Width > MaxImageSize || cfg.Height > MaxImageSize {
		return nil, fmt.Errorf("%w: image is %dx%d, at most %dx%d pixels allowed",
			ErrMalformedSignature, cfg.Width, cfg.Height, MaxImageSize, MaxImageSize)
	}

	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	return &Image{
		Data:   data,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

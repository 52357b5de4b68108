package layout

import (
	"fmt"

	"github.com/spf13/viper"
)

// fileLayout mirrors Layout for decoding. Viper lower-cases map keys, so
// field names, purposes and mark keys are matched case-insensitively.
type fileLayout struct {
	ID       string           `mapstructure:"id"`
	Title    string           `mapstructure:"title"`
	Template string           `mapstructure:"template"`
	Fields   []filePlacement  `mapstructure:"fields"`
	Purposes []string         `mapstructure:"purposes"`
	Marks    map[string]Point `mapstructure:"marks"`
	Glyph    string           `mapstructure:"glyph"`
	MarkSize float64          `mapstructure:"marksize"`
	Clock    []fileClock      `mapstructure:"clock"`
	Sign     fileSignature    `mapstructure:"signature"`
}

type filePlacement struct {
	Fields []string `mapstructure:"fields"`
	X      float64  `mapstructure:"x"`
	Y      float64  `mapstructure:"y"`
	Size   float64  `mapstructure:"size"`
}

type fileClock struct {
	Format string  `mapstructure:"format"`
	X      float64 `mapstructure:"x"`
	Y      float64 `mapstructure:"y"`
	Size   float64 `mapstructure:"size"`
}

type fileSignature struct {
	TargetWidth float64 `mapstructure:"targetwidth"`
	X           float64 `mapstructure:"x"`
	Y           float64 `mapstructure:"y"`
	RightMargin float64 `mapstructure:"rightmargin"`
}

// LoadFile reads additional layouts from a YAML, JSON or TOML file holding a
// top-level "layouts" list. Missing glyph defaults to "x".
func LoadFile(path string) ([]*Layout, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read layout file %s: %w", path, err)
	}

	var raw []fileLayout
	if err := v.UnmarshalKey("layouts", &raw); err != nil {
		return nil, fmt.Errorf("failed to decode layout file %s: %w", path, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("layout file %s declares no layouts", path)
	}

	out := make([]*Layout, 0, len(raw))
	for i := range raw {
		l, err := raw[i].toLayout()
		if err != nil {
			return nil, fmt.Errorf("layout file %s: entry %d: %w", path, i, err)
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fileLayout) toLayout() (*Layout, error) {
	l := &Layout{
		ID:       f.ID,
		Title:    f.Title,
		Template: f.Template,
		Marks:    make(map[Purpose]Point, len(f.Marks)),
		Glyph:    f.Glyph,
		MarkSize: f.MarkSize,
		Sign: SignaturePlacement{
			TargetWidth: f.Sign.TargetWidth,
			X:           f.Sign.X,
			Y:           f.Sign.Y,
			RightMargin: f.Sign.RightMargin,
		},
	}
	if l.Glyph == "" {
		l.Glyph = "x"
	}

	for _, fp := range f.Fields {
		tp := TextPlacement{X: fp.X, Y: fp.Y, Size: fp.Size}
		for _, name := range fp.Fields {
			field, ok := ParseField(name)
			if !ok {
				return nil, fmt.Errorf("unknown field %q", name)
			}
			tp.Fields = append(tp.Fields, field)
		}
		l.Fields = append(l.Fields, tp)
	}

	for _, name := range f.Purposes {
		p, ok := ParsePurpose(name)
		if !ok {
			return nil, fmt.Errorf("unknown purpose %q", name)
		}
		l.Purposes = append(l.Purposes, p)
	}

	for name, pt := range f.Marks {
		p, ok := ParsePurpose(name)
		if !ok {
			return nil, fmt.Errorf("unknown mark purpose %q", name)
		}
		l.Marks[p] = pt
	}

	for _, c := range f.Clock {
		l.Clock = append(l.Clock, ClockPlacement(c))
	}

	return l, nil
}

package annotate

import (
	"fmt"
	"image/color"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/spherical/snap2pdf/internal/domain"
)

// Style is the fixed look of one text object
type Style struct {
	Color    color.RGBA
	FontSize float64
	Family   string
}

var families = map[string][]byte{
	"Go Regular": goregular.TTF,
	"Go Bold":    gobold.TTF,
	"Go Italic":  goitalic.TTF,
	"Go Mono":    gomono.TTF,
}

// Families lists the font families a Style may name.
func Families() []string {
	out := make([]string, 0, len(families))
	for name := range families {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

var namedColors = map[string]color.RGBA{
	"black": {A: 255},
	"white": {R: 255, G: 255, B: 255, A: 255},
	"red":   {R: 255, A: 255},
	"green": {G: 128, A: 255},
	"blue":  {B: 255, A: 255},
}

// NewStyle validates and builds a Style from configuration values.
func NewStyle(colorSpec string, size float64, family string) (Style, error) {
	c, err := ParseColor(colorSpec)
	if err != nil {
		return Style{}, err
	}
	if size <= 0 {
		return Style{}, domain.ValidationError(fmt.Sprintf("font size must be positive, got %g", size), nil)
	}
	if _, ok := families[family]; !ok {
		return Style{}, domain.ValidationError(fmt.Sprintf("unknown font family %q", family), nil)
	}
	return Style{Color: c, FontSize: size, Family: family}, nil
}

// ParseColor accepts #rgb, #rrggbb or a basic color name.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 || !strings.HasPrefix(s, "#") {
		return color.RGBA{}, domain.ValidationError(fmt.Sprintf("invalid color %q", s), nil)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, domain.ValidationError(fmt.Sprintf("invalid color %q", s), err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// Hex formats c as #rrggbb.
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

type faceKey struct {
	family string
	size   float64
}

var (
	faceMu    sync.Mutex
	faceCache = map[faceKey]font.Face{}
	fontCache = map[string]*opentype.Font{}
)

// faceFor returns a shared face. Faces are not safe for concurrent use, so
// callers hold faceMu while drawing.
func faceFor(family string, size float64) (font.Face, error) {
	key := faceKey{family, size}
	if f, ok := faceCache[key]; ok {
		return f, nil
	}
	parsed, ok := fontCache[family]
	if !ok {
		ttf, known := families[family]
		if !known {
			return nil, domain.ValidationError(fmt.Sprintf("unknown font family %q", family), nil)
		}
		var err error
		parsed, err = opentype.Parse(ttf)
		if err != nil {
			return nil, domain.ConversionError("failed to parse font", err)
		}
		fontCache[family] = parsed
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, domain.ConversionError("failed to create font face", err)
	}
	faceCache[key] = face
	return face, nil
}

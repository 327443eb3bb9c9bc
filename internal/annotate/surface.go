// Package annotate is the in-memory editing surface used by the annotation
// workflow: a background raster plus movable text objects that can be
// flattened into a single image.
package annotate

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/spherical/snap2pdf/internal/domain"
)

// TextObject is one text overlay. X and Y locate the centre of the text box.
type TextObject struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Style Style   `json:"-"`
}

// Surface is a background raster with an ordered overlay of text objects.
// It is not safe for concurrent use.
type Surface struct {
	background *image.RGBA
	objects    []TextObject
}

// NewSurface wraps bg as an editable surface. bg is never modified.
func NewSurface(bg *image.RGBA) *Surface {
	return &Surface{background: bg}
}

// Bounds returns the surface size in pixels.
func (s *Surface) Bounds() image.Rectangle {
	return s.background.Bounds()
}

// Background returns the untouched background raster.
func (s *Surface) Background() *image.RGBA {
	return s.background
}

// Add inserts a text object centred on (x, y) and returns it.
func (s *Surface) Add(x, y float64, text string, style Style) (TextObject, error) {
	if err := s.checkPoint(x, y); err != nil {
		return TextObject{}, err
	}
	obj := TextObject{ID: uuid.NewString(), Text: text, X: x, Y: y, Style: style}
	s.objects = append(s.objects, obj)
	return obj, nil
}

// Move repositions an existing object.
func (s *Surface) Move(id string, x, y float64) (TextObject, error) {
	if err := s.checkPoint(x, y); err != nil {
		return TextObject{}, err
	}
	i, err := s.index(id)
	if err != nil {
		return TextObject{}, err
	}
	s.objects[i].X, s.objects[i].Y = x, y
	return s.objects[i], nil
}

// SetText replaces an object's text.
func (s *Surface) SetText(id, text string) (TextObject, error) {
	i, err := s.index(id)
	if err != nil {
		return TextObject{}, err
	}
	s.objects[i].Text = text
	return s.objects[i], nil
}

// Remove deletes an object.
func (s *Surface) Remove(id string) error {
	i, err := s.index(id)
	if err != nil {
		return err
	}
	s.objects = append(s.objects[:i], s.objects[i+1:]...)
	return nil
}

// Objects returns a copy of the overlay in insertion order.
func (s *Surface) Objects() []TextObject {
	out := make([]TextObject, len(s.objects))
	copy(out, s.objects)
	return out
}

// Flatten draws the background and every text object, in order, onto a new raster.
func (s *Surface) Flatten() (*image.RGBA, error) {
	b := s.background.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, s.background, b.Min, draw.Src)

	faceMu.Lock()
	defer faceMu.Unlock()
	for _, obj := range s.objects {
		if err := drawCentered(dst, obj); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

// FlattenJPEG flattens the surface and encodes it as JPEG.
func (s *Surface) FlattenJPEG(quality int) ([]byte, error) {
	img, err := s.Flatten()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, domain.ConversionError("failed to encode flattened page", err)
	}
	return buf.Bytes(), nil
}

func (s *Surface) index(id string) (int, error) {
	for i := range s.objects {
		if s.objects[i].ID == id {
			return i, nil
		}
	}
	return -1, domain.ValidationError(fmt.Sprintf("no text object %q", id), nil)
}

func (s *Surface) checkPoint(x, y float64) error {
	b := s.background.Bounds()
	if x < float64(b.Min.X) || y < float64(b.Min.Y) || x > float64(b.Max.X) || y > float64(b.Max.Y) {
		return domain.ValidationError(fmt.Sprintf("point (%.0f, %.0f) is outside the %dx%d page", x, y, b.Dx(), b.Dy()), nil)
	}
	return nil
}

// drawCentered renders each line of obj.Text centred horizontally on obj.X,
// with the block of lines centred vertically on obj.Y. Caller holds faceMu.
func drawCentered(dst *image.RGBA, obj TextObject) error {
	face, err := faceFor(obj.Style.Family, obj.Style.FontSize)
	if err != nil {
		return err
	}
	m := face.Metrics()
	lineHeight := m.Height
	lines := strings.Split(obj.Text, "\n")
	blockHeight := lineHeight.Mul(fixed.I(len(lines)))

	top := fixed.Int26_6(obj.Y*64) - blockHeight/2
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(obj.Style.Color),
		Face: face,
	}
	for i, line := range lines {
		width := d.MeasureString(line)
		baseline := top + lineHeight.Mul(fixed.I(i)) + m.Ascent
		d.Dot = fixed.Point26_6{X: fixed.Int26_6(obj.X*64) - width/2, Y: baseline}
		d.DrawString(line)
	}
	return nil
}

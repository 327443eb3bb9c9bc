package capture

import (
	"bytes"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"github.com/spherical/snap2pdf/internal/domain"
)

// Preparer normalizes frames into JPEG bytes ready for page construction.
type Preparer struct {
	Quality  int
	MaxWidth int // 0 disables downscaling
}

// Prepare returns JPEG bytes for frame together with their pixel size.
// JPEG frames within MaxWidth pass through untouched.
func (p Preparer) Prepare(frame domain.RawImageFrame) ([]byte, int, int, error) {
	needsScale := p.MaxWidth > 0 && frame.Width > p.MaxWidth
	if frame.Format == domain.FormatJPEG && !needsScale {
		return frame.Data, frame.Width, frame.Height, nil
	}

	src, _, err := image.Decode(bytes.NewReader(frame.Data))
	if err != nil {
		return nil, 0, 0, domain.ConversionError("failed to decode frame", err)
	}

	img := src
	if needsScale {
		b := src.Bounds()
		h := b.Dy() * p.MaxWidth / b.Dx()
		if h < 1 {
			h = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, p.MaxWidth, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.Quality}); err != nil {
		return nil, 0, 0, domain.ConversionError("failed to encode frame", err)
	}
	b := img.Bounds()
	return buf.Bytes(), b.Dx(), b.Dy(), nil
}

package pdf

import (
	"bytes"
	"context"

	"codeberg.org/go-pdf/fpdf"

	"github.com/spherical/snap2pdf/internal/domain"
)

const pageImageName = "frame"

// ImagePager builds single-image pages with fpdf
type ImagePager struct{}

// NewImagePager creates an fpdf backed page builder
func NewImagePager() *ImagePager {
	return &ImagePager{}
}

// ImagePage returns a one-page PDF of widthMM x heightMM whose only content
// is the JPEG drawn edge to edge.
func (p *ImagePager) ImagePage(ctx context.Context, jpeg []byte, widthMM, heightMM float64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if widthMM <= 0 || heightMM <= 0 {
		return nil, domain.ValidationError("page size must be positive", nil)
	}

	// "P" keeps Wd and Ht as given; "L" would swap them
	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: widthMM, Ht: heightMM},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.AddPage()

	opts := fpdf.ImageOptions{ImageType: "JPG"}
	doc.RegisterImageOptionsReader(pageImageName, opts, bytes.NewReader(jpeg))
	doc.ImageOptions(pageImageName, 0, 0, widthMM, heightMM, false, opts, 0, "")

	var out bytes.Buffer
	if err := doc.Output(&out); err != nil {
		return nil, domain.ConversionError("failed to build image page", err)
	}
	return out.Bytes(), nil
}

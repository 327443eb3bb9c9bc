package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/spherical/snap2pdf/internal/domain"
)

// stampDescription places an image centred, scaled to the full page width,
// unrotated and fully opaque.
const stampDescription = "pos:c, scale:1 rel, rot:0, op:1"

var disableConfigDir sync.Once

// Composer implements domain.Composer on top of pdfcpu
type Composer struct {
	conf *model.Configuration
}

// NewComposer creates a pdfcpu backed composer. pdfcpu's on-disk
// configuration directory is disabled; everything stays in memory.
func NewComposer() *Composer {
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Composer{conf: conf}
}

// PageCount loads the document and returns its number of pages.
func (c *Composer) PageCount(ctx context.Context, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := api.PageCount(bytes.NewReader(data), c.config())
	if err != nil {
		return 0, domain.DocumentLoadError("", err)
	}
	return n, nil
}

// Merge concatenates every page of every document in argument order.
func (c *Composer) Merge(ctx context.Context, docs [][]byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	readers := make([]io.ReadSeeker, len(docs))
	for i, d := range docs {
		readers[i] = bytes.NewReader(d)
	}

	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, c.config()); err != nil {
		return nil, domain.ConversionError("failed to merge documents", err)
	}
	return out.Bytes(), nil
}

// ExtractPage returns a one-page document holding a copy of the 1-based page.
func (c *Composer) ExtractPage(ctx context.Context, data []byte, page int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), c.config())
	if err != nil {
		return nil, domain.DocumentLoadError("", err)
	}
	if err := domain.PageSelection(page).Validate(pdfCtx.PageCount); err != nil {
		return nil, err
	}

	r, err := api.ExtractPage(pdfCtx, page)
	if err != nil {
		return nil, domain.ConversionError(fmt.Sprintf("failed to extract page %d", page), err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("failed to read page %d", page), err)
	}
	return out, nil
}

// StampImage draws jpeg over the whole of one page. The image is expected to
// share the page's aspect ratio; it is fitted to the page width. The page's
// own content stream is left in place underneath the opaque image, so it no
// longer shows but its text is still extractable.
func (c *Composer) StampImage(ctx context.Context, data []byte, page int, jpeg []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wm, err := api.ImageWatermarkForReader(bytes.NewReader(jpeg), stampDescription, true, false, types.POINTS)
	if err != nil {
		return nil, domain.ConversionError("failed to prepare page image", err)
	}

	var out bytes.Buffer
	pages := []string{strconv.Itoa(page)}
	if err := api.AddWatermarks(bytes.NewReader(data), &out, pages, wm, c.config()); err != nil {
		return nil, domain.ConversionError(fmt.Sprintf("failed to stamp page %d", page), err)
	}
	return out.Bytes(), nil
}

// config returns a private copy; pdfcpu mutates the configuration it is given.
func (c *Composer) config() *model.Configuration {
	conf := *c.conf
	return &conf
}

package pdf

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/snap2pdf/internal/domain"
)

// pointsPerInch is the native PDF resolution; scale 1 renders at 72 DPI.
const pointsPerInch = 72.0

// MuPDF implements domain.Renderer and domain.TextEngine using go-fitz
type MuPDF struct{}

// NewMuPDF creates a MuPDF backed engine
func NewMuPDF() *MuPDF {
	return &MuPDF{}
}

// Open loads document bytes. Failures are reported as DocumentLoad errors.
func (m *MuPDF) Open(ctx context.Context, data []byte) (domain.RenderedDocument, error) {
	return m.open(ctx, data)
}

// OpenText loads document bytes for text extraction.
func (m *MuPDF) OpenText(ctx context.Context, data []byte) (domain.TextDocument, error) {
	return m.open(ctx, data)
}

func (m *MuPDF) open(ctx context.Context, data []byte) (*fitzDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, domain.DocumentLoadError("", err)
	}
	return &fitzDocument{doc: doc}, nil
}

// TextEngine adapts MuPDF to the domain.TextEngine contract.
func (m *MuPDF) TextEngine() domain.TextEngine {
	return mupdfText{m}
}

type mupdfText struct{ m *MuPDF }

func (t mupdfText) Open(ctx context.Context, data []byte) (domain.TextDocument, error) {
	return t.m.OpenText(ctx, data)
}

// fitzDocument is not safe for concurrent page access; calls are serialized.
type fitzDocument struct {
	mu     sync.Mutex
	doc    *fitz.Document
	closed bool
}

func (d *fitzDocument) NumPage() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0
	}
	return d.doc.NumPage()
}

func (d *fitzDocument) RenderPage(ctx context.Context, page int, scale float64) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkPage(page); err != nil {
		return nil, err
	}
	img, err := d.doc.ImageDPI(page-1, scale*pointsPerInch)
	if err != nil {
		return nil, domain.ConversionError(fmt.Sprintf("failed to render page %d", page), err)
	}
	return img, nil
}

// Fragments returns the page's non-empty text lines in MuPDF reading order.
func (d *fitzDocument) Fragments(ctx context.Context, page int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkPage(page); err != nil {
		return nil, err
	}
	text, err := d.doc.Text(page - 1)
	if err != nil {
		return nil, domain.ConversionError(fmt.Sprintf("failed to read text of page %d", page), err)
	}
	return splitLines(text), nil
}

func (d *fitzDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.doc.Close()
}

func (d *fitzDocument) checkPage(page int) error {
	if d.closed {
		return domain.ConversionError("document is closed", nil)
	}
	return domain.PageSelection(page).Validate(d.doc.NumPage())
}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	lpdf "github.com/ledongthuc/pdf"

	"github.com/spherical/snap2pdf/internal/domain"
)

// Native is a pure Go text engine backed by ledongthuc/pdf. It needs no cgo
// and is used when MuPDF is unavailable or explicitly deselected.
type Native struct{}

// NewNative creates a pure Go text engine
func NewNative() *Native {
	return &Native{}
}

// Open parses the document cross-reference table.
func (n *Native) Open(ctx context.Context, data []byte) (doc domain.TextDocument, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, domain.DocumentLoadError("", fmt.Errorf("parser panic: %v", r))
		}
	}()

	reader, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.DocumentLoadError("", err)
	}
	return &nativeDocument{reader: reader}, nil
}

type nativeDocument struct {
	reader *lpdf.Reader
}

func (d *nativeDocument) NumPage() int {
	return d.reader.NumPage()
}

// Fragments returns one fragment per text run in content stream order. Rows
// are only walked for ordering: the parser reports (0, 0) for runs positioned
// with Td, so a row can hold several lines.
func (d *nativeDocument) Fragments(ctx context.Context, page int) (frags []string, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := domain.PageSelection(page).Validate(d.reader.NumPage()); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			frags, err = nil, domain.ConversionError(fmt.Sprintf("failed to read text of page %d", page), fmt.Errorf("parser panic: %v", r))
		}
	}()

	p := d.reader.Page(page)
	if p.V.IsNull() {
		return nil, nil
	}
	rows, err := p.GetTextByRow()
	if err != nil {
		return nil, domain.ConversionError(fmt.Sprintf("failed to read text of page %d", page), err)
	}

	for _, row := range rows {
		for _, t := range row.Content {
			if s := strings.TrimSpace(t.S); s != "" {
				frags = append(frags, s)
			}
		}
	}
	return frags, nil
}

func (d *nativeDocument) Close() error {
	d.reader = nil
	return nil
}

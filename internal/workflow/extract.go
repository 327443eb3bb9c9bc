package workflow

import (
	"context"
	"strings"

	"github.com/spherical/snap2pdf/internal/domain"
	"github.com/spherical/snap2pdf/internal/download"
	"github.com/spherical/snap2pdf/internal/observability"
)

// TextFileName is the download name for extracted text.
const TextFileName = "snap2pdf_text.txt"

const (
	fragmentSeparator = " "
	pageSeparator     = "\n\n"
)

// Extract returns the text of every page in page order. Fragments of a page
// are joined with a space, pages with a blank line, and the whole is trimmed.
// Nothing is reordered or deduplicated. When sink is non-nil the text is also
// delivered as snap2pdf_text.txt.
func (s *Service) Extract(ctx context.Context, input domain.Input, sink download.Sink) (*domain.ExtractResult, error) {
	var result *domain.ExtractResult
	_, err := s.run(ctx, domain.WorkflowExtract, sink, func(ctx context.Context, log *observability.Logger) (*domain.Output, error) {
		if err := s.validator.ValidatePDFBytes(input.Name, input.Data); err != nil {
			return nil, err
		}
		doc, err := s.engines.Text.Open(ctx, input.Data)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, domain.DocumentLoadError(input.Name, unwrapLoad(err))
		}
		defer doc.Close()

		n := doc.NumPage()
		pages := make([]domain.PageText, 0, n)
		texts := make([]string, 0, n)
		for p := 1; p <= n; p++ {
			s.emit(domain.WorkflowExtract, domain.EventPageProcessing, p, n)
			frags, err := doc.Fragments(ctx, p)
			if err != nil {
				return nil, err
			}
			text := strings.Join(frags, fragmentSeparator)
			pages = append(pages, domain.PageText{Page: p, Text: text})
			texts = append(texts, text)
			s.emit(domain.WorkflowExtract, domain.EventPageComplete, p, len(frags))
		}

		result = &domain.ExtractResult{
			Text:  strings.TrimSpace(strings.Join(texts, pageSeparator)),
			Pages: pages,
		}
		log.Debug().Int("pages", n).Int("chars", len(result.Text)).Msg("text extracted")
		return &domain.Output{
			Name:        TextFileName,
			Data:        []byte(result.Text),
			ContentType: "text/plain; charset=utf-8",
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

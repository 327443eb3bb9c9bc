package workflow

import (
	"context"

	"github.com/spherical/snap2pdf/internal/domain"
	"github.com/spherical/snap2pdf/internal/download"
	"github.com/spherical/snap2pdf/internal/observability"
)

// Split copies one page of input into snap2pdf_page_<N>.pdf. The page is
// checked against the real page count and never clamped.
func (s *Service) Split(ctx context.Context, input domain.Input, page domain.PageSelection, sink download.Sink) (*domain.Output, error) {
	return s.run(ctx, domain.WorkflowSplit, sink, func(ctx context.Context, log *observability.Logger) (*domain.Output, error) {
		total, err := s.loadInput(ctx, input)
		if err != nil {
			return nil, err
		}
		if err := page.Validate(total); err != nil {
			return nil, err
		}

		s.emit(domain.WorkflowSplit, domain.EventPageProcessing, int(page), input.Name)
		data, err := s.engines.Composer.ExtractPage(ctx, input.Data, int(page))
		if err != nil {
			return nil, err
		}
		log.Debug().Int("page", int(page)).Int("total", total).Msg("page extracted")
		s.emit(domain.WorkflowSplit, domain.EventPageComplete, int(page), nil)
		return domain.NewPDFOutput(domain.SplitFileName(int(page)), data), nil
	})
}

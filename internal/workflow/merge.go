package workflow

import (
	"context"
	"fmt"

	"github.com/spherical/snap2pdf/internal/domain"
	"github.com/spherical/snap2pdf/internal/download"
	"github.com/spherical/snap2pdf/internal/observability"
)

// MinMergeInputs is the fewest documents a merge accepts.
const MinMergeInputs = 2

// Merge concatenates every page of every input, in input order, into
// snap2pdf_merged.pdf. Every input is loaded before any page is copied; a
// single bad input aborts the whole merge.
func (s *Service) Merge(ctx context.Context, inputs []domain.Input, sink download.Sink) (*domain.Output, error) {
	return s.run(ctx, domain.WorkflowMerge, sink, func(ctx context.Context, log *observability.Logger) (*domain.Output, error) {
		if len(inputs) < MinMergeInputs {
			return nil, domain.InsufficientInput(len(inputs), MinMergeInputs)
		}

		total := 0
		docs := make([][]byte, len(inputs))
		for i, in := range inputs {
			s.emit(domain.WorkflowMerge, domain.EventPageProcessing, i+1, in.Name)
			n, err := s.loadInput(ctx, in)
			if err != nil {
				return nil, err
			}
			log.Debug().Str("input", in.Name).Int("pages", n).Msg("input loaded")
			total += n
			docs[i] = in.Data
		}

		merged, err := s.engines.Composer.Merge(ctx, docs)
		if err != nil {
			return nil, err
		}

		got, err := s.engines.Composer.PageCount(ctx, merged)
		if err != nil {
			return nil, domain.ConversionError("merged document is unreadable", err)
		}
		if got != total {
			return nil, domain.ConversionError(fmt.Sprintf("merged document has %d pages, want %d", got, total), nil)
		}
		return domain.NewPDFOutput(domain.MergedFileName, merged), nil
	})
}

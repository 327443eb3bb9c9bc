package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/snap2pdf/cmd/snap2pdf/ui"
	"github.com/spherical/snap2pdf/internal/domain"
	"github.com/spherical/snap2pdf/internal/download"
	"github.com/spherical/snap2pdf/internal/workflow"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <a.pdf> <b.pdf> [more.pdf...]",
	Short: "Concatenate PDFs, in argument order, into snap2pdf_merged.pdf",
	RunE:  runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, args []string) error {
	if len(args) < workflow.MinMergeInputs {
		return domain.InsufficientInput(len(args), workflow.MinMergeInputs)
	}
	inputs, err := readInputs(args)
	if err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.stop()

	ui.Info("Merging %d documents", len(inputs))
	return s.produce(s.documents(inputs), func(sink download.Sink) (*domain.Output, error) {
		return s.app.Service.Merge(s.ctx, inputs, sink)
	})
}

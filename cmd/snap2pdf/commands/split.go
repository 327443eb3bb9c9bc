package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/snap2pdf/internal/domain"
	"github.com/spherical/snap2pdf/internal/download"
)

var splitPage int

var splitCmd = &cobra.Command{
	Use:   "split <file.pdf> --page N",
	Short: "Copy one page into snap2pdf_page_<N>.pdf",
	Args:  cobra.ExactArgs(1),
	RunE:  runSplit,
}

func init() {
	splitCmd.Flags().IntVarP(&splitPage, "page", "p", 1, "1-based page to extract")
	rootCmd.AddCommand(splitCmd)
}

func runSplit(cmd *cobra.Command, args []string) error {
	inputs, err := readInputs(args)
	if err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.stop()

	return s.produce(s.spinner("Extracting page"), func(sink download.Sink) (*domain.Output, error) {
		return s.app.Service.Split(s.ctx, inputs[0], domain.PageSelection(splitPage), sink)
	})
}

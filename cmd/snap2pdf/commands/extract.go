package commands

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/spherical/snap2pdf/cmd/snap2pdf/ui"
	"github.com/spherical/snap2pdf/internal/config"
	"github.com/spherical/snap2pdf/internal/domain"
)

var (
	extractOutput string
	extractJSON   bool
	extractEngine string
)

var extractCmd = &cobra.Command{
	Use:   "extract <file.pdf>",
	Short: "Print the text of every page",
	Long: `Prints the text of every page in page order. Text pieces on a page are
joined with a space and pages are separated by a blank line.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&extractOutput, "output", "", "write the text to this file instead of stdout")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "print per-page JSON")
	extractCmd.Flags().StringVar(&extractEngine, "engine", "", "text engine: mupdf or native (overrides config)")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	inputs, err := readInputs(args)
	if err != nil {
		return err
	}

	s, err := newSession(cmd, func(cfg *config.Config) {
		if extractEngine != "" {
			cfg.Extract.Engine = extractEngine
		}
	})
	if err != nil {
		return err
	}
	defer s.stop()

	var res *domain.ExtractResult
	err = s.progress("Extracting text")(func() error {
		var err error
		res, err = s.app.Service.Extract(s.ctx, inputs[0], nil)
		return err
	})
	if err != nil {
		return err
	}

	var data []byte
	if extractJSON {
		data, err = json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
	} else {
		data = []byte(res.Text)
	}

	if extractOutput == "" {
		cmd.OutOrStdout().Write(data)
		cmd.OutOrStdout().Write([]byte("\n"))
		return nil
	}
	if err := os.WriteFile(extractOutput, data, 0o644); err != nil {
		return domain.IOError("failed to write text", err)
	}
	ui.Success("Saved %s (%d pages)", extractOutput, len(res.Pages))
	return nil
}

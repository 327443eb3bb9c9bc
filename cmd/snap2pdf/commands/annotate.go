package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spherical/snap2pdf/cmd/snap2pdf/ui"
	"github.com/spherical/snap2pdf/internal/domain"
	"github.com/spherical/snap2pdf/internal/download"
)

var annotateTexts []string

var annotateCmd = &cobra.Command{
	Use:   "annotate <file.pdf> --text x,y[,text]...",
	Short: "Stamp text onto page 1 and save snap2pdf_edited.pdf",
	Long: `Renders page 1 at the configured scale, places each --text centred on
the given pixel position of that raster and replaces page 1 with the
flattened result. Other pages are kept as they are. Without a text the
placeholder from the config is used.`,
	Example: `  snap2pdf annotate contract.pdf --text 200,120,"Approved" --text 450,900`,
	Args:    cobra.ExactArgs(1),
	RunE:    runAnnotate,
}

func init() {
	annotateCmd.Flags().StringArrayVarP(&annotateTexts, "text", "t", nil, "x,y[,text] in raster pixels (repeatable)")
	rootCmd.AddCommand(annotateCmd)
}

type textSpec struct {
	X, Y float64
	Text string
}

// parseTextSpec parses "x,y" or "x,y,text"; the text may contain commas.
func parseTextSpec(s string) (textSpec, error) {
	parts := strings.SplitN(s, ",", 3)
	if len(parts) < 2 {
		return textSpec{}, domain.ValidationError(fmt.Sprintf("invalid --text %q: want x,y[,text]", s), nil)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return textSpec{}, domain.ValidationError(fmt.Sprintf("invalid x in --text %q", s), err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return textSpec{}, domain.ValidationError(fmt.Sprintf("invalid y in --text %q", s), err)
	}
	spec := textSpec{X: x, Y: y}
	if len(parts) == 3 {
		spec.Text = parts[2]
	}
	return spec, nil
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	specs := make([]textSpec, 0, len(annotateTexts))
	for _, t := range annotateTexts {
		spec, err := parseTextSpec(t)
		if err != nil {
			return err
		}
		specs = append(specs, spec)
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

	w := s.app.Service.Annotate()
	defer w.Close()

	if err := w.Load(s.ctx, inputs[0]); err != nil {
		return err
	}
	width, height := w.Session().Size()
	ui.Info("Page 1 is %dx%d pixels, %d pages total", width, height, w.Session().PageCount)

	for _, spec := range specs {
		obj, err := w.AddText(spec.X, spec.Y)
		if err != nil {
			return err
		}
		if spec.Text != "" {
			if obj, err = w.EditText(obj.ID, spec.Text); err != nil {
				return err
			}
		}
		if ui.Verbose() {
			ui.Message("  %q at %.0f,%.0f", obj.Text, obj.X, obj.Y)
		}
	}

	return s.produce(s.spinner("Saving"), func(sink download.Sink) (*domain.Output, error) {
		return w.Save(s.ctx, sink)
	})
}

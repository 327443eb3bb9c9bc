package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/snap2pdf/cmd/snap2pdf/ui"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent workflow runs from the audit database",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.stop()

	driver := s.app.Config.Audit.Driver
	if driver == "" || driver == "none" {
		ui.Warning("Run history is off; set audit.driver or DATABASE_URL to record runs")
		return nil
	}

	recs, err := s.app.Audit.Recent(s.ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		ui.Info("No runs recorded yet")
		return nil
	}

	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		result := r.OutputName
		if result == "" {
			result = string(r.ErrorType)
		}
		rows = append(rows, []string{
			r.StartedAt.Local().Format(time.DateTime),
			string(r.Workflow),
			string(r.Status),
			result,
			r.Duration.Round(time.Millisecond).String(),
			fmt.Sprint(r.OutputBytes),
		})
	}
	ui.Section(fmt.Sprintf("Last %d runs (%s)", len(recs), driver))
	ui.Table([]string{"STARTED", "WORKFLOW", "STATUS", "RESULT", "DURATION", "BYTES"}, rows)
	return nil
}

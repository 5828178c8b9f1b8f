package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"groundtruth/internal/report"
)

func newReportCommand(root *rootOptions) *cobra.Command {
	var (
		runID  string
		format string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize a run from the journal history",
		Long: `Report aggregates a run's journal events from the SQLite history
database into a human summary: session economics, fixtures, verification
outcomes and sweep results. Without --run it explains the most recent run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.config()
			if cfg.JournalDB == "" {
				return fmt.Errorf("report reads run history; set GROUNDTRUTH_JOURNAL_DB to the journal database path")
			}

			summary, err := report.FromSQLite(cmd.Context(), cfg.JournalDB, runID)
			if err != nil {
				return err
			}

			switch format {
			case "markdown":
				_, err = cmd.OutOrStdout().Write(report.Markdown(summary))
			case "json":
				var out []byte
				if out, err = report.JSON(summary); err == nil {
					_, err = cmd.OutOrStdout().Write(out)
				}
			default:
				return fmt.Errorf("unknown format %q, want markdown or json", format)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "run id to report on (default: the most recent run)")
	cmd.Flags().StringVar(&format, "format", "markdown", "output format (markdown, json)")
	return cmd
}

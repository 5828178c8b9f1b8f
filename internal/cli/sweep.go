package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"groundtruth/internal/harness"
)

func newSweepCommand(root *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove marked residue rows directly from the database",
		Long: `Sweep deletes every row carrying the synthetic-data markers, in
teardown order, inside one transaction. Rows created by operators are
never touched. Use --dry-run to see what a sweep would remove.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.config()
			log := root.logger(cfg, cmd.ErrOrStderr())

			h, err := harness.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer h.Close()

			counts, err := h.Sweeper.Run(cmd.Context(), dryRun)
			if err != nil {
				return err
			}

			tables := make([]string, 0, len(counts))
			for table := range counts {
				tables = append(tables, table)
			}
			sort.Strings(tables)

			out := cmd.OutOrStdout()
			var total int64
			for _, table := range tables {
				total += counts[table]
				fmt.Fprintf(out, "%s\t%d\n", table, counts[table])
			}
			verb := "deleted"
			if dryRun {
				verb = "would delete"
			}
			fmt.Fprintf(out, "%s %d rows across %d tables\n", verb, total, len(tables))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count matching rows without deleting anything")
	return cmd
}

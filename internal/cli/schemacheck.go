package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"groundtruth/internal/harness"
	"groundtruth/internal/schema"
)

func newSchemaCheckCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema-check",
		Short: "Cross-check the fixture graph against the live database schema",
		Long: `Schema-check verifies that every dependency the fixture graph declares
is backed by a real foreign key, and that no foreign key between fixture
tables goes undeclared. Run it after migrations to catch drift before a
suite trips over it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.config()
			log := root.logger(cfg, cmd.ErrOrStderr())

			h, err := harness.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer h.Close()

			mismatches := schema.Validate(h.Contract, h.Graph)
			out := cmd.OutOrStdout()
			if len(mismatches) == 0 {
				fmt.Fprintf(out, "fixture graph and database schema agree (%d tables)\n", len(h.Contract.Tables))
				return nil
			}
			for _, m := range mismatches {
				fmt.Fprintln(out, m.String())
			}
			return fmt.Errorf("%d mismatches between fixture graph and database schema", len(mismatches))
		},
	}
}

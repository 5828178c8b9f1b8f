package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"groundtruth/internal/harness"
	pstrings "groundtruth/pkg/platform/strings"
)

func newWarmCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "warm [role...]",
		Short: "Log roles in ahead of a run and cache their sessions",
		Long: `Warm authenticates the given roles (default: every role in the roster)
and stores the sessions in the configured cache backend. Suites that run
afterwards reuse those sessions instead of logging in themselves.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.config()
			log := root.logger(cfg, cmd.ErrOrStderr())

			h, err := harness.New(cmd.Context(), cfg, log, harness.WithoutDatabase())
			if err != nil {
				return err
			}
			defer h.Close()

			roles := pstrings.DedupeAndTrim(args)
			if len(roles) == 0 {
				roles = h.Sessions.Roles()
			}
			if len(roles) == 0 {
				return fmt.Errorf("roster %s has no roles to warm", cfg.IdentitiesFile)
			}

			if err := h.Warm(cmd.Context(), roles...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "warmed %d sessions into the %s cache\n", len(roles), cfg.CacheBackend)
			return nil
		},
	}
}

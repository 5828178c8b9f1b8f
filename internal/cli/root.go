// Package cli wires the groundtruth commands. Configuration comes from
// GROUNDTRUTH_* environment variables; flags only override presentation
// concerns and per-invocation choices. Logs go to stderr so stdout stays
// parseable.
package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"groundtruth/internal/platform/config"
	"groundtruth/internal/platform/logger"
)

type rootOptions struct {
	logLevel  string
	logFormat string
}

func (o *rootOptions) config() config.Config {
	cfg := config.FromEnv()
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	return cfg
}

func (o *rootOptions) logger(cfg config.Config, w io.Writer) *slog.Logger {
	return logger.New(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: w,
	})
}

// NewRootCommand builds the groundtruth CLI.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "groundtruth",
		Short: "Session cache, fixture lifecycle and verification for API test suites",
		Long: `groundtruth manages what end-to-end suites need around their tests:
cached role sessions so suites stop paying login rate limits, marked
fixtures built through the application API and torn down in dependency
order, and read-only verification against the system of record.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "override log format (text, json)")

	cmd.AddCommand(newWarmCommand(opts))
	cmd.AddCommand(newSweepCommand(opts))
	cmd.AddCommand(newSchemaCheckCommand(opts))
	cmd.AddCommand(newReportCommand(opts))
	cmd.AddCommand(newServeCommand(opts))

	return cmd
}

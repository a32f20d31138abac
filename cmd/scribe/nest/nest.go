// Package nest implements `scribe nest`, which moves a flat extraction into
// the two level prefix layout.
package nest

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/flarebyte/thoth-scribe/cli"
	"github.com/flarebyte/thoth-scribe/internal/logging"
	"github.com/flarebyte/thoth-scribe/internal/shard"
)

// NewCmd returns the nest command.
func NewCmd(lf *logging.Flags) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:           "nest DIR",
		Short:         "Move flat files of DIR into prefix directories",
		Args:          cli.Args(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if workers < 1 {
				return cli.Usagef("invalid value for --workers: must be >= 1")
			}
			log, err := lf.Logger(cmd.ErrOrStderr())
			if err != nil {
				return cli.Usage(err)
			}
			stats, err := shard.EnsureNested(cmd.Context(), args[0], shard.NestOptions{Workers: workers, Log: log})
			if err != nil {
				return cli.Failure(err)
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(stats)
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "j", 15, "Concurrent movers")
	return cmd
}

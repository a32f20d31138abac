// Package index implements `scribe index`.
package index

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/flarebyte/thoth-scribe/cli"
	"github.com/flarebyte/thoth-scribe/internal/discover"
	articleindex "github.com/flarebyte/thoth-scribe/internal/index"
	"github.com/flarebyte/thoth-scribe/internal/logging"
)

// NewCmd returns the index command.
func NewCmd(lf *logging.Flags) *cobra.Command {
	var out string
	var noGitignore bool
	cmd := &cobra.Command{
		Use:           "index inputs...",
		Short:         "Write a name and url listing for every input archive",
		Args:          cli.Args(cobra.MinimumNArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := lf.Logger(cmd.ErrOrStderr())
			if err != nil {
				return cli.Usage(err)
			}
			inputs, err := discover.Expand(args, discover.Options{NoGitignore: noGitignore})
			if err != nil {
				return cli.Failure(err)
			}
			n, err := articleindex.Build(cmd.Context(), inputs, out, log)
			if err != nil {
				return cli.Failure(err)
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"indexed": n, "out": out})
		},
	}
	cmd.Flags().StringVar(&out, "out", articleindex.DefaultDir, "Directory receiving the index files")
	cmd.Flags().BoolVar(&noGitignore, "no-gitignore", false, "Ignore .gitignore files inside input directories")
	return cmd
}

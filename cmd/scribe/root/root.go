package root

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/flarebyte/thoth-scribe/cli"
	"github.com/flarebyte/thoth-scribe/cmd/scribe/extract"
	"github.com/flarebyte/thoth-scribe/cmd/scribe/index"
	"github.com/flarebyte/thoth-scribe/cmd/scribe/inspect"
	"github.com/flarebyte/thoth-scribe/cmd/scribe/nest"
	"github.com/flarebyte/thoth-scribe/cmd/scribe/show"
	"github.com/flarebyte/thoth-scribe/cmd/scribe/version"
	"github.com/flarebyte/thoth-scribe/internal/logging"
)

// NewRootCmd creates the root command for scribe.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scribe",
		Short: "Extract articles from JSON archive dumps into sharded files or SQLite",
		Args:  cli.Args(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Show help when no subcommand is provided.
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return cli.Usage(err)
	})

	var logFlags logging.Flags
	logFlags.Bind(cmd.PersistentFlags())

	cmd.AddCommand(version.VersionCmd)
	cmd.AddCommand(extract.NewCmd(&logFlags))
	cmd.AddCommand(nest.NewCmd(&logFlags))
	cmd.AddCommand(index.NewCmd(&logFlags))
	cmd.AddCommand(show.NewCmd(&logFlags))
	cmd.AddCommand(inspect.NewCmd())

	return cmd
}

// Execute runs the root command with provided args.
func Execute(ctx context.Context, args []string) error {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// Package show implements `scribe show`, printing a stored article.
package show

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/flarebyte/thoth-scribe/cli"
	"github.com/flarebyte/thoth-scribe/internal/logging"
	"github.com/flarebyte/thoth-scribe/internal/sink"
)

// NewCmd returns the show command.
func NewCmd(lf *logging.Flags) *cobra.Command {
	var db string
	cmd := &cobra.Command{
		Use:           "show NAME",
		Short:         "Print the html of an article stored in a SQLite database",
		Args:          cli.Args(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if db == "" {
				return cli.Usagef("missing required flag: --db")
			}
			if _, err := os.Stat(db); err != nil {
				return cli.Failure(err)
			}
			log, err := lf.Logger(cmd.ErrOrStderr())
			if err != nil {
				return cli.Usage(err)
			}
			s, err := sink.OpenSQLReader(db, log)
			if err != nil {
				return cli.Failure(err)
			}
			defer func() { _ = s.Close() }()
			a, err := s.Lookup(cmd.Context(), args[0])
			if err != nil {
				return cli.Failure(err)
			}
			_, err = cmd.OutOrStdout().Write(a.HTML)
			return err
		},
	}
	cmd.Flags().StringVar(&db, "db", "", "SQLite database written by extract --sink sqlite")
	return cmd
}

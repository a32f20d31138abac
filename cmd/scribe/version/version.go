package version

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/flarebyte/thoth-scribe/internal/buildinfo"
)

var (
	flagShort bool
	flagJSON  bool
)

// jsonInfo is the payload of `scribe version --json`.
type jsonInfo struct {
	buildinfo.Info
	Timestamp string `json:"timestamp"`
}

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagShort || !flagJSON {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "scribe %s\n", buildinfo.Summary())
			return err
		}
		// JSON goes to stdout, a human friendly line to stderr.
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "scribe version: %s\n", buildinfo.Summary())
		return encodeJSON(cmd.OutOrStdout(), jsonInfo{
			Info:      buildinfo.Get(),
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
	},
}

func init() {
	VersionCmd.Flags().BoolVar(&flagShort, "short", false, "Print only the version string")
	VersionCmd.Flags().BoolVar(&flagJSON, "json", false, "Print detailed JSON version info")
}

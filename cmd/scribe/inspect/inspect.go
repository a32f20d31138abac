// Package inspect implements `scribe inspect`, a dry run over one archive.
package inspect

import (
	"encoding/json"
	"errors"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/flarebyte/thoth-scribe/cli"
	"github.com/flarebyte/thoth-scribe/internal/record"
	"github.com/flarebyte/thoth-scribe/internal/shard"
)

// line is printed once per element of the archive.
type line struct {
	Index int    `json:"index"`
	Name  string `json:"name,omitempty"`
	Key   string `json:"key,omitempty"`
	Path  string `json:"path,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewCmd returns the inspect command.
func NewCmd() *cobra.Command {
	var max int
	cmd := &cobra.Command{
		Use:           "inspect INPUT",
		Short:         "Print the key and shard path of every record without writing anything",
		Args:          cli.Args(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if max < 0 {
				return cli.Usagef("invalid value for --max: must be >= 0")
			}
			return inspect(args[0], max, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&max, "max", 0, "Stop after this many elements (0 means all)")
	return cmd
}

func inspect(path string, max int, w io.Writer) error {
	src, err := record.Open(path)
	if err != nil {
		return cli.Failure(err)
	}
	defer func() { _ = src.Close() }()
	enc := json.NewEncoder(w)
	for max == 0 || src.Count() < max {
		rec, err := src.Next()
		if err == io.EOF {
			return nil
		}
		var l line
		var de *record.DecodeError
		switch {
		case errors.As(err, &de):
			l = line{Index: de.Index, Error: de.Err.Error()}
		case err != nil:
			return cli.Failure(err)
		default:
			l = line{
				Index: src.Count(),
				Name:  rec.Name,
				Key:   rec.Key,
				Path:  filepath.ToSlash(shard.Path("", rec.Key)),
			}
		}
		if err := enc.Encode(l); err != nil {
			return err
		}
	}
	return nil
}

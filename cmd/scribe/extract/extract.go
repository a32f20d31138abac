// Package extract implements `scribe extract`.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/flarebyte/thoth-scribe/cli"
	"github.com/flarebyte/thoth-scribe/internal/buildinfo"
	"github.com/flarebyte/thoth-scribe/internal/discover"
	"github.com/flarebyte/thoth-scribe/internal/filter"
	"github.com/flarebyte/thoth-scribe/internal/logging"
	"github.com/flarebyte/thoth-scribe/internal/manifest"
	"github.com/flarebyte/thoth-scribe/internal/pipeline"
	"github.com/flarebyte/thoth-scribe/internal/sink"
)

// NewCmd returns the extract command.
func NewCmd(lf *logging.Flags) *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:           "extract [inputs...]",
		Short:         "Extract article bodies into sharded files or a SQLite database",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolve(cmd, f, lf, args)
			if err != nil {
				return err
			}
			log, err := logging.New(s.logLevel, s.logFormat, cmd.ErrOrStderr())
			if err != nil {
				return cli.Usage(err)
			}
			return run(cmd.Context(), cmd.OutOrStdout(), s, log)
		},
	}
	f.bind(cmd)
	return cmd
}

// result is the single JSON line printed on stdout.
type result struct {
	RunID   string         `json:"runId"`
	Outcome string         `json:"outcome"`
	Stats   pipeline.Stats `json:"stats"`
}

func run(ctx context.Context, stdout io.Writer, s settings, log *logrus.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	inputs, err := discover.Expand(s.inputs, discover.Options{Patterns: s.patterns, NoGitignore: s.noGitignore})
	if err != nil {
		return cli.Failure(err)
	}
	if len(inputs) == 0 {
		return cli.Usagef("no input files found")
	}

	opts := pipeline.Options{
		Workers:         s.workers,
		Limit:           s.limit,
		ChannelCapacity: s.channelCapacity,
		ProgressEvery:   s.progressEvery,
		OnProgress:      progressLogger(log),
		Log:             log,
	}
	if s.filter != "" {
		script, err := filter.Compile(s.filter, filter.Limits{Timeout: s.filterTimeout})
		if err != nil {
			return cli.Usage(err)
		}
		opts.Filter = script
	}

	runID := manifest.NewRunID()
	runLog := log.WithFields(logrus.Fields{"run": runID, "sink": s.kind})
	opts.Log = runLog
	started := time.Now()

	var r *pipeline.Run
	switch s.kind {
	case sink.KindSQLite:
		db, err := sink.OpenSQL(ctx, s.out, runLog)
		if err != nil {
			return cli.Failure(err)
		}
		defer func() { _ = db.Close() }()
		r, err = pipeline.StartPooled[sink.Row](ctx, inputs, db, opts)
		if err != nil {
			return cli.Failure(err)
		}
	default:
		fs, err := sink.NewFileSink(s.out, sink.FileOptions{
			SkipExisting: s.skipExisting,
			Flat:         !s.nesting,
			Log:          runLog,
		})
		if err != nil {
			return cli.Failure(err)
		}
		r, err = pipeline.StartPerSource(ctx, inputs, fs, opts)
		if err != nil {
			return cli.Failure(err)
		}
	}

	runErr := r.Wait()
	stats := r.Stats()
	status := r.Status()
	runLog.WithFields(logrus.Fields{
		"outcome":      status.String(),
		"processed":    stats.Processed,
		"written":      stats.Written,
		"skipped":      stats.Skipped,
		"writeFailed":  stats.WriteFailed,
		"filtered":     stats.Filtered,
		"decodeErrors": stats.DecodeErrors,
		"elapsed":      time.Since(started).Round(time.Millisecond).String(),
	}).Info("extract finished")

	if s.manifest != "" {
		sum := manifest.Summary{
			RunID:     runID,
			Version:   buildinfo.Summary(),
			StartedAt: started,
			Duration:  time.Since(started),
			Sink:      string(s.kind),
			Output:    s.out,
			Inputs:    inputs,
			Counters: manifest.Counters{
				Processed:    stats.Processed,
				Written:      stats.Written,
				Skipped:      stats.Skipped,
				WriteFailed:  stats.WriteFailed,
				Filtered:     stats.Filtered,
				DecodeErrors: stats.DecodeErrors,
			},
			Outcome: status.String(),
		}
		if runErr != nil {
			sum.Error = runErr.Error()
		}
		if err := manifest.Write(s.manifest, sum); err != nil {
			runLog.WithError(err).Error("unable to write manifest")
			if runErr == nil {
				return cli.Failure(fmt.Errorf("write manifest: %w", err))
			}
		}
	}
	if runErr != nil {
		return cli.Failure(runErr)
	}
	enc := json.NewEncoder(stdout)
	return enc.Encode(result{RunID: runID, Outcome: status.String(), Stats: stats})
}

package extract

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/flarebyte/thoth-scribe/cli"
	"github.com/flarebyte/thoth-scribe/internal/config"
	"github.com/flarebyte/thoth-scribe/internal/logging"
	"github.com/flarebyte/thoth-scribe/internal/sink"
)

const (
	defaultFilesOut      = "extracted"
	defaultWorkers       = 4
	defaultFilterTimeout = 2000
)

// flags are the raw command line values.
type flags struct {
	config          string
	sink            string
	out             string
	workers         int
	limit           uint64
	skipExisting    bool
	noNesting       bool
	channelCapacity int
	progressEvery   uint64
	filter          string
	filterTimeoutMs int
	patterns        []string
	noGitignore     bool
	manifest        string
	verbose         bool
}

func (f *flags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.config, "config", "c", "", "Path to config file (.cue)")
	fs.StringVar(&f.sink, "sink", string(sink.KindFiles), "Sink kind: files or sqlite")
	fs.StringVar(&f.out, "out", "", "Output directory (files) or database path (sqlite)")
	fs.IntVarP(&f.workers, "workers", "j", defaultWorkers, "Parse workers for the sqlite sink")
	fs.Uint64Var(&f.limit, "limit", 0, "Stop after this many records (0 means no limit)")
	fs.BoolVar(&f.skipExisting, "skip-existing", false, "Do not overwrite files that already exist")
	fs.BoolVar(&f.noNesting, "no-nesting", false, "Write files flat instead of into prefix directories")
	fs.IntVar(&f.channelCapacity, "channel-capacity", 50, "Queue size between parse workers and the sqlite writer")
	fs.Uint64Var(&f.progressEvery, "progress-every", 100, "Log progress every N records")
	fs.StringVar(&f.filter, "filter", "", "Lua predicate deciding which records to keep")
	fs.IntVar(&f.filterTimeoutMs, "filter-timeout-ms", defaultFilterTimeout, "Per record timeout of the filter")
	fs.StringSliceVar(&f.patterns, "pattern", nil, "File name globs picked up inside input directories")
	fs.BoolVar(&f.noGitignore, "no-gitignore", false, "Ignore .gitignore files inside input directories")
	fs.StringVar(&f.manifest, "manifest", "", "Write a YAML run manifest to this path")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "Log every extracted record")
}

// settings are the resolved values of one run.
type settings struct {
	inputs          []string
	kind            sink.Kind
	out             string
	workers         int
	limit           uint64
	skipExisting    bool
	nesting         bool
	channelCapacity int
	progressEvery   uint64
	filter          string
	filterTimeout   time.Duration
	patterns        []string
	noGitignore     bool
	manifest        string
	logLevel        string
	logFormat       string
}

// resolve layers defaults, the config file and explicitly set flags, in
// that order.
func resolve(cmd *cobra.Command, f *flags, lf *logging.Flags, args []string) (settings, error) {
	s := settings{
		inputs:          args,
		workers:         f.workers,
		limit:           f.limit,
		skipExisting:    f.skipExisting,
		nesting:         !f.noNesting,
		channelCapacity: f.channelCapacity,
		progressEvery:   f.progressEvery,
		filter:          f.filter,
		filterTimeout:   time.Duration(f.filterTimeoutMs) * time.Millisecond,
		patterns:        f.patterns,
		noGitignore:     f.noGitignore,
		manifest:        f.manifest,
		out:             f.out,
		logLevel:        lf.Level,
		logFormat:       lf.Format,
	}
	kind := f.sink
	changed := cmd.Flags().Changed

	if f.config != "" {
		x, err := config.ParseExtract(f.config)
		if err != nil {
			return settings{}, cli.Usage(err)
		}
		if x.HasInputs && len(args) == 0 {
			s.inputs = x.Inputs
		}
		if x.Sink.HasKind && !changed("sink") {
			kind = x.Sink.Kind
		}
		if x.Sink.HasOut && !changed("out") {
			s.out = x.Sink.Out
		}
		if x.Sink.HasSkipExisting && !changed("skip-existing") {
			s.skipExisting = x.Sink.SkipExisting
		}
		if x.Sink.HasNesting && !changed("no-nesting") {
			s.nesting = x.Sink.Nesting
		}
		if x.HasWorkers && !changed("workers") {
			s.workers = x.Workers
		}
		if x.HasLimit && !changed("limit") {
			s.limit = x.Limit
		}
		if x.HasChannelCapacity && !changed("channel-capacity") {
			s.channelCapacity = x.ChannelCapacity
		}
		if x.HasProgressEvery && !changed("progress-every") {
			s.progressEvery = x.ProgressEvery
		}
		if x.Filter.HasInline && !changed("filter") {
			s.filter = x.Filter.Inline
		}
		if x.Filter.HasTimeoutMs && !changed("filter-timeout-ms") {
			s.filterTimeout = time.Duration(x.Filter.TimeoutMs) * time.Millisecond
		}
		if x.Discovery.HasPatterns && !changed("pattern") {
			s.patterns = x.Discovery.Patterns
		}
		if x.Discovery.HasNoGitignore && !changed("no-gitignore") {
			s.noGitignore = x.Discovery.NoGitignore
		}
		if x.HasManifest && !changed("manifest") {
			s.manifest = x.Manifest
		}
		if x.Log.HasLevel && !changed("log-level") {
			s.logLevel = x.Log.Level
		}
		if x.Log.HasFormat && !changed("log-format") {
			s.logFormat = x.Log.Format
		}
	}
	if f.verbose && !changed("log-level") {
		s.logLevel = "debug"
	}

	k, ok := sink.ParseKind(kind)
	if !ok {
		return settings{}, cli.Usagef("invalid sink kind %q (expected files or sqlite)", kind)
	}
	s.kind = k
	if len(s.inputs) == 0 {
		return settings{}, cli.Usagef("missing input files")
	}
	if s.out == "" {
		if s.kind == sink.KindSQLite {
			return settings{}, cli.Usagef("missing required flag: --out")
		}
		s.out = defaultFilesOut
	}
	if s.workers < 1 {
		return settings{}, cli.Usagef("invalid value for --workers: must be >= 1")
	}
	if s.channelCapacity < 1 {
		return settings{}, cli.Usagef("invalid value for --channel-capacity: must be >= 1")
	}
	if s.progressEvery < 1 {
		return settings{}, cli.Usagef("invalid value for --progress-every: must be >= 1")
	}
	return s, nil
}

// Package config reads extract settings from a CUE file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Extract holds the settings of an extract run. Every optional field has a
// Has flag so callers can tell an explicit zero from an absent value.
type Extract struct {
	ConfigVersion string

	Inputs    []string
	HasInputs bool

	Sink Sink

	Workers    int
	HasWorkers bool

	Limit    uint64
	HasLimit bool

	ChannelCapacity    int
	HasChannelCapacity bool

	ProgressEvery    uint64
	HasProgressEvery bool

	Filter    Filter
	Discovery Discovery
	Log       Log

	Manifest    string
	HasManifest bool
}

// Sink selects where records go.
type Sink struct {
	Kind            string
	Out             string
	SkipExisting    bool
	Nesting         bool
	HasKind         bool
	HasOut          bool
	HasSkipExisting bool
	HasNesting      bool
}

// Filter holds the optional Lua predicate.
type Filter struct {
	Inline       string
	TimeoutMs    int
	HasInline    bool
	HasTimeoutMs bool
}

// Discovery controls directory expansion.
type Discovery struct {
	Patterns       []string
	NoGitignore    bool
	HasPatterns    bool
	HasNoGitignore bool
}

// Log holds logger settings.
type Log struct {
	Level     string
	Format    string
	HasLevel  bool
	HasFormat bool
}

// compileCUE loads and compiles a CUE file at the given path.
func compileCUE(path string) (cue.Value, error) {
	if filepath.Ext(path) != ".cue" {
		return cue.Value{}, errors.New("unsupported config format: expected .cue")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, fmt.Errorf("failed to read config: %w", err)
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("invalid config: %v", err)
	}
	return v, nil
}

// ParseExtract validates and extracts the settings of the CUE file at path.
func ParseExtract(path string) (Extract, error) {
	v, err := compileCUE(path)
	if err != nil {
		return Extract{}, err
	}
	var x Extract
	if err := requireStringField(v, "configVersion"); err != nil {
		return Extract{}, err
	}
	if err := v.LookupPath(cue.ParsePath("configVersion")).Decode(&x.ConfigVersion); err != nil {
		return Extract{}, fmt.Errorf("invalid value for configVersion: %v", err)
	}
	if !IsSupportedConfigVersion(x.ConfigVersion) {
		return Extract{}, fmt.Errorf("unsupported configVersion: %q (supported: %s)", x.ConfigVersion, SupportedConfigVersionsCSV())
	}

	p := parser{v: v}
	x.HasInputs = p.strings("inputs", &x.Inputs)

	x.Sink.HasKind = p.string("sink.kind", &x.Sink.Kind)
	x.Sink.HasOut = p.string("sink.out", &x.Sink.Out)
	x.Sink.HasSkipExisting = p.bool("sink.skipExisting", &x.Sink.SkipExisting)
	x.Sink.HasNesting = p.bool("sink.nesting", &x.Sink.Nesting)

	x.HasWorkers = p.int("workers", &x.Workers, 1)
	var limit int
	if x.HasLimit = p.int("limit", &limit, 0); x.HasLimit {
		x.Limit = uint64(limit)
	}
	x.HasChannelCapacity = p.int("channelCapacity", &x.ChannelCapacity, 1)
	var every int
	if x.HasProgressEvery = p.int("progressEvery", &every, 1); x.HasProgressEvery {
		x.ProgressEvery = uint64(every)
	}

	x.Filter.HasInline = p.string("filter.inline", &x.Filter.Inline)
	x.Filter.HasTimeoutMs = p.int("filter.timeoutMs", &x.Filter.TimeoutMs, 0)

	x.Discovery.HasPatterns = p.strings("discovery.patterns", &x.Discovery.Patterns)
	x.Discovery.HasNoGitignore = p.bool("discovery.noGitignore", &x.Discovery.NoGitignore)

	x.Log.HasLevel = p.string("log.level", &x.Log.Level)
	x.Log.HasFormat = p.string("log.format", &x.Log.Format)

	x.HasManifest = p.string("manifest", &x.Manifest)

	if p.err != nil {
		return Extract{}, p.err
	}
	return x, nil
}

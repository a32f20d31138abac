package shard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/flarebyte/thoth-scribe/internal/logging"
)

const (
	defaultNestWorkers = 15
	nestQueueSize      = 500
	nestReportEvery    = 100
)

// NestOptions configures EnsureNested.
type NestOptions struct {
	Workers int
	Log     logrus.FieldLogger
}

// NestStats summarizes an EnsureNested pass.
type NestStats struct {
	Moved     uint64 `json:"moved"`
	Conflicts uint64 `json:"conflicts"`
	Failed    uint64 `json:"failed"`
}

type nester struct {
	dir       string
	dirs      *DirSet
	log       logrus.FieldLogger
	moved     atomic.Uint64
	conflicts atomic.Uint64
	failed    atomic.Uint64
}

// EnsureNested moves the files sitting directly in dir into the sharded
// layout used by Path. Subdirectories are left alone and existing targets are
// never overwritten, so a second pass over the same tree moves nothing.
func EnsureNested(ctx context.Context, dir string, opts NestOptions) (NestStats, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return NestStats{}, fmt.Errorf("unable to read directory %s: %w", dir, err)
	}
	workers := opts.Workers
	if workers < 1 {
		workers = defaultNestWorkers
	}
	n := &nester{dir: dir, dirs: NewDirSet(), log: logging.OrDiscard(opts.Log)}

	g, gctx := errgroup.WithContext(ctx)
	names := make(chan string, nestQueueSize)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for name := range names {
				n.move(name)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(names)
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			select {
			case names <- e.Name():
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	err = g.Wait()
	stats := NestStats{Moved: n.moved.Load(), Conflicts: n.conflicts.Load(), Failed: n.failed.Load()}
	return stats, err
}

func (n *nester) move(name string) {
	src := filepath.Join(n.dir, name)
	if err := n.dirs.Ensure(Dir(n.dir, name)); err != nil {
		n.failed.Add(1)
		n.log.WithField("path", src).WithError(err).Warn("unable to create shard directory")
		return
	}
	dst := Path(n.dir, name)
	if _, err := os.Lstat(dst); err == nil {
		n.conflicts.Add(1)
		n.log.WithField("path", dst).Warn("target already exists, leaving file in place")
		return
	}
	if err := os.Rename(src, dst); err != nil {
		n.failed.Add(1)
		n.log.WithField("path", src).WithError(err).Warn("failed to rename")
		return
	}
	moved := n.moved.Add(1)
	if moved%nestReportEvery == 0 {
		n.log.WithField("moved", moved).Info("moving files")
	}
}

// Package pipeline runs concurrent ingestion: many record sources decoded in
// parallel, handed to a sink either directly or through a bounded channel
// drained by a single writer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/flarebyte/thoth-scribe/internal/logging"
	"github.com/flarebyte/thoth-scribe/internal/record"
	"github.com/flarebyte/thoth-scribe/internal/sink"
)

const defaultChannelCapacity = 50

// Sink persists records and tolerates concurrent callers.
type Sink interface {
	Write(ctx context.Context, rec record.Record) (sink.Outcome, error)
}

// Stage splits persistence into a concurrent Prepare step and a Commit step
// that is only ever called from the single writer goroutine.
type Stage[T any] interface {
	Prepare(rec record.Record) (T, error)
	Commit(ctx context.Context, item T) (sink.Outcome, error)
}

// Filter decides whether an admitted record goes to the sink.
type Filter interface {
	Keep(rec record.Record) (bool, error)
}

// Options configures a run.
type Options struct {
	// Workers is the number of parse workers of a pooled run.
	Workers int
	// Limit stops the run after that many records. Zero means no limit.
	Limit uint64
	// ChannelCapacity bounds the queue between parse workers and the writer.
	ChannelCapacity int
	// ProgressEvery and SkipReportEvery are the reporting intervals.
	ProgressEvery   uint64
	SkipReportEvery uint64
	OnProgress      func(Event)
	Filter          Filter
	Log             logrus.FieldLogger
}

// getWorkers returns the configured worker count or a sane default.
func getWorkers(opts Options) int {
	n := runtime.NumCPU()
	if opts.Workers > 0 {
		n = opts.Workers
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Run is a started ingestion.
type Run struct {
	state *State
	log   logrus.FieldLogger
	opts  Options
	done  chan struct{}
	err   error
}

func newRun(opts Options) *Run {
	st := NewState(opts.Limit)
	st.progress = newProgressReporter(opts.ProgressEvery, opts.SkipReportEvery, opts.OnProgress)
	return &Run{state: st, log: logging.OrDiscard(opts.Log), opts: opts, done: make(chan struct{})}
}

// Wait blocks until every worker has returned and reports the first fatal
// error, or nil when the run completed or was cancelled. Calling it again
// returns the same result.
func (r *Run) Wait() error {
	<-r.done
	return r.err
}

// Done is closed once every worker has returned.
func (r *Run) Done() <-chan struct{} { return r.done }

// Stats returns the current counters.
func (r *Run) Stats() Stats { return r.state.Snapshot() }

// Status reports the lifecycle position of the run.
func (r *Run) Status() Status { return r.state.Status() }

// State exposes the shared coordination state.
func (r *Run) State() *State { return r.state }

// validateInputs checks every input before any work starts.
func validateInputs(paths []string) error {
	if len(paths) == 0 {
		return errors.New("no input files")
	}
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			return &record.OpenError{Path: p, Err: err}
		}
		if !st.Mode().IsRegular() {
			return &record.OpenError{Path: p, Err: errors.New("not a file")}
		}
	}
	return nil
}

func (r *Run) fail(err error) {
	if !r.state.Fail(err) && !errors.Is(err, ErrCancelled) {
		r.log.WithError(err).Debug("discarding error raised after the first failure")
	}
}

// guard turns a worker panic into a fatal error.
func (r *Run) guard(path *string) {
	if v := recover(); v != nil {
		r.fail(&panicError{Path: *path, Value: v})
	}
}

// watch fails the run when ctx ends before the workers do.
func (r *Run) watch(ctx context.Context, finished <-chan struct{}) {
	select {
	case <-ctx.Done():
		r.fail(ctx.Err())
	case <-finished:
	}
}

// consume reads one source and hands every admitted record to handle.
func (r *Run) consume(path string, handle func(record.Record) error) {
	src, err := record.Open(path)
	if err != nil {
		r.fail(err)
		return
	}
	defer func() { _ = src.Close() }()
	log := r.log.WithField("path", path)
	for !r.state.Stopped() {
		rec, err := src.Next()
		if err == io.EOF {
			return
		}
		if err != nil {
			var de *record.DecodeError
			if errors.As(err, &de) {
				r.state.DecodeError()
				log.WithError(err).Warn("unable to parse record")
				continue
			}
			r.fail(err)
			return
		}
		if _, ok := r.state.Admit(); !ok {
			return
		}
		if r.opts.Filter != nil {
			keep, err := r.opts.Filter.Keep(rec)
			if err != nil {
				r.fail(fmt.Errorf("filter %q from %s: %w", rec.Name, path, err))
				return
			}
			if !keep {
				r.state.Filter()
				continue
			}
		}
		if err := handle(rec); err != nil {
			r.fail(err)
			return
		}
	}
}

func (r *Run) finish(finished chan struct{}) {
	r.state.finish()
	r.err = r.state.Err()
	close(finished)
	close(r.done)
}

// StartPerSource runs one worker per input, each writing straight into s.
// All inputs are checked before any worker starts.
func StartPerSource(ctx context.Context, paths []string, s Sink, opts Options) (*Run, error) {
	if err := validateInputs(paths); err != nil {
		return nil, err
	}
	r := newRun(opts)
	finished := make(chan struct{})
	go r.watch(ctx, finished)

	var wg sync.WaitGroup
	for _, p := range paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer r.guard(&path)
			r.consume(path, func(rec record.Record) error {
				out, err := s.Write(ctx, rec)
				if err != nil {
					if errors.Is(err, ErrCancelled) {
						return err
					}
					return &SinkWriteError{Path: path, Name: rec.Name, Err: err}
				}
				r.state.Record(out, rec.Name)
				return nil
			})
		}(p)
	}
	go func() {
		wg.Wait()
		r.finish(finished)
	}()
	return r, nil
}

type queued[T any] struct {
	path string
	name string
	item T
}

// StartPooled runs opts.Workers parse workers pulling inputs from a shared
// queue. Prepared items go through a channel of opts.ChannelCapacity to a
// single writer calling st.Commit. A full channel blocks the parse workers.
func StartPooled[T any](ctx context.Context, paths []string, st Stage[T], opts Options) (*Run, error) {
	if err := validateInputs(paths); err != nil {
		return nil, err
	}
	capacity := opts.ChannelCapacity
	if capacity < 1 {
		capacity = defaultChannelCapacity
	}
	r := newRun(opts)
	finished := make(chan struct{})
	go r.watch(ctx, finished)

	queue := make(chan string, len(paths))
	for _, p := range paths {
		queue <- p
	}
	close(queue)

	items := make(chan queued[T], capacity)
	var producers sync.WaitGroup
	for i := 0; i < getWorkers(opts); i++ {
		producers.Add(1)
		go func() {
			defer producers.Done()
			current := ""
			defer r.guard(&current)
			for path := range queue {
				if r.state.Stopped() {
					return
				}
				current = path
				r.log.WithField("path", path).Info("processing")
				r.consume(path, func(rec record.Record) error {
					item, err := st.Prepare(rec)
					if err != nil {
						if errors.Is(err, ErrCancelled) {
							return err
						}
						return &SinkWriteError{Path: path, Name: rec.Name, Err: err}
					}
					select {
					case items <- queued[T]{path: path, name: rec.Name, item: item}:
					case <-r.state.Failed():
					}
					return nil
				})
			}
		}()
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		current := ""
		defer r.guard(&current)
		for q := range items {
			if r.state.Err() != nil {
				return
			}
			current = q.path
			out, err := st.Commit(ctx, q.item)
			if err != nil {
				if errors.Is(err, ErrCancelled) {
					r.state.Cancel()
					continue
				}
				r.fail(&SinkWriteError{Path: q.path, Name: q.name, Err: err})
				return
			}
			r.state.Record(out, q.name)
		}
	}()

	go func() {
		producers.Wait()
		close(items)
		<-writerDone
		r.finish(finished)
	}()
	return r, nil
}

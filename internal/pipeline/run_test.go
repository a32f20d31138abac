package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/flarebyte/thoth-scribe/internal/record"
	"github.com/flarebyte/thoth-scribe/internal/shard"
	"github.com/flarebyte/thoth-scribe/internal/sink"
)

func countFiles(t *testing.T, root string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	return n
}

func countWarnings(hook *logtest.Hook, msg string) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == msg {
			n++
		}
	}
	return n
}

func TestPerSource_FilesEndToEnd(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	paths := []string{
		writeDump(t, in, "a.json", "Alpha", "Beta", "!", "Gamma"),
		writeDump(t, in, "b.json", "Delta", "!", "Epsilon", "Zeta"),
	}

	logger, hook := logtest.NewNullLogger()
	fs, err := sink.NewFileSink(out, sink.FileOptions{Log: logger})
	if err != nil {
		t.Fatalf("sink: %v", err)
	}
	run, err := StartPerSource(context.Background(), paths, fs, Options{Log: logger})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := run.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	st := run.Stats()
	if st.Processed != 6 || st.Written != 6 || st.DecodeErrors != 2 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if n := countFiles(t, out); n != 6 {
		t.Fatalf("expected 6 files, got %d", n)
	}
	if n := countWarnings(hook, "unable to parse record"); n != 2 {
		t.Fatalf("expected 2 decode warnings, got %d", n)
	}
	b, err := os.ReadFile(shard.Path(out, "Gamma.html"))
	if err != nil || string(b) != "<p>Gamma</p>" {
		t.Fatalf("unexpected Gamma content: %q %v", b, err)
	}
	if run.Status() != Completed {
		t.Fatalf("unexpected status: %s", run.Status())
	}

	fs, err = sink.NewFileSink(out, sink.FileOptions{SkipExisting: true})
	if err != nil {
		t.Fatalf("sink: %v", err)
	}
	run, err = StartPerSource(context.Background(), paths, fs, Options{})
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := run.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	st = run.Stats()
	if st.Written != 0 || st.Skipped != 6 {
		t.Fatalf("unexpected stats on rerun: %+v", st)
	}
}

func TestPerSource_CounterHasNoGapsUnderConcurrency(t *testing.T) {
	paths := writeNumberedDumps(t, t.TempDir(), 8, 250)
	ms := newMemorySink()
	var events atomic.Int64
	run, err := StartPerSource(context.Background(), paths, ms, Options{
		ProgressEvery: 100,
		OnProgress: func(ev Event) {
			if ev.Kind == EventProcessed {
				events.Add(1)
			}
		},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := run.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	st := run.Stats()
	if st.Processed != 2000 || st.Written != 2000 || ms.count() != 2000 {
		t.Fatalf("unexpected stats: %+v sink=%d", st, ms.count())
	}
	if events.Load() != 20 {
		t.Fatalf("expected 20 progress events, got %d", events.Load())
	}
}

func TestPerSource_LimitCancelsWithoutError(t *testing.T) {
	paths := writeNumberedDumps(t, t.TempDir(), 3, 40)
	ms := newMemorySink()
	run, err := StartPerSource(context.Background(), paths, ms, Options{Limit: 25})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := run.Wait(); err != nil {
		t.Fatalf("cancellation surfaced as error: %v", err)
	}
	if run.Status() != Cancelled {
		t.Fatalf("expected cancelled, got %s", run.Status())
	}
	st := run.Stats()
	if st.Processed != 25 || st.Written != 25 || ms.count() != 25 {
		t.Fatalf("unexpected stats: %+v sink=%d", st, ms.count())
	}
}

func TestPerSource_FirstFatalErrorWins(t *testing.T) {
	paths := writeNumberedDumps(t, t.TempDir(), 6, 200)
	errBoom := errors.New("disk on fire")
	ms := newMemorySink()
	ms.failOn = "A03_0010"
	ms.err = errBoom
	run, err := StartPerSource(context.Background(), paths, ms, Options{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	err = run.Wait()
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected sink error, got %v", err)
	}
	var swe *SinkWriteError
	if !errors.As(err, &swe) || swe.Name != "A03_0010" || filepath.Base(swe.Path) != "dump-03.json" {
		t.Fatalf("missing error context: %v", err)
	}
	if run.Status() != Failed {
		t.Fatalf("expected failed, got %s", run.Status())
	}
	if again := run.Wait(); again != err {
		t.Fatalf("wait is not idempotent: %v vs %v", again, err)
	}
}

func TestPerSource_PanicIsUnexpectedTermination(t *testing.T) {
	paths := writeNumberedDumps(t, t.TempDir(), 2, 20)
	ms := newMemorySink()
	ms.panicOn = "A01_0005"
	run, err := StartPerSource(context.Background(), paths, ms, Options{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := run.Wait(); !errors.Is(err, ErrUnexpectedTermination) {
		t.Fatalf("expected unexpected termination, got %v", err)
	}
}

type cancellingSink struct{ after int64 }

func (c *cancellingSink) Write(context.Context, record.Record) (sink.Outcome, error) {
	if atomic.AddInt64(&c.after, -1) < 0 {
		return sink.Failed, ErrCancelled
	}
	return sink.Written, nil
}

func TestPerSource_SinkCancellationIsNotAnError(t *testing.T) {
	paths := writeNumberedDumps(t, t.TempDir(), 2, 50)
	run, err := StartPerSource(context.Background(), paths, &cancellingSink{after: 10}, Options{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := run.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Status() != Cancelled {
		t.Fatalf("expected cancelled, got %s", run.Status())
	}
}

func TestStart_ValidatesInputsFirst(t *testing.T) {
	dir := t.TempDir()
	good := writeDump(t, dir, "good.json", "Alpha")
	ms := newMemorySink()
	_, err := StartPerSource(context.Background(), []string{good, filepath.Join(dir, "missing.json")}, ms, Options{})
	var oe *record.OpenError
	if !errors.As(err, &oe) {
		t.Fatalf("expected open error, got %v", err)
	}
	_, err = StartPooled[sink.Row](context.Background(), []string{dir}, nil, Options{})
	if !errors.As(err, &oe) {
		t.Fatalf("expected open error for directory, got %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if ms.count() != 0 {
		t.Fatalf("work started before validation finished")
	}
}

type nameFilter struct{ drop string }

func (f nameFilter) Keep(rec record.Record) (bool, error) { return rec.Name != f.drop, nil }

func TestPerSource_FilterDropsRecords(t *testing.T) {
	p := writeDump(t, t.TempDir(), "a.json", "Alpha", "Beta", "Gamma")
	ms := newMemorySink()
	run, err := StartPerSource(context.Background(), []string{p}, ms, Options{Filter: nameFilter{drop: "Beta"}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := run.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	st := run.Stats()
	if st.Processed != 3 || st.Filtered != 1 || st.Written != 2 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

type slowStage struct {
	delay     time.Duration
	failOn    string
	mu        sync.Mutex
	prepared  int
	committed int
	maxQueued int
}

func (s *slowStage) Prepare(rec record.Record) (string, error) {
	s.mu.Lock()
	s.prepared++
	if q := s.prepared - s.committed; q > s.maxQueued {
		s.maxQueued = q
	}
	s.mu.Unlock()
	return rec.Name, nil
}

func (s *slowStage) Commit(_ context.Context, name string) (sink.Outcome, error) {
	time.Sleep(s.delay)
	if name == s.failOn {
		return sink.Failed, errors.New("constraint exploded")
	}
	s.mu.Lock()
	s.committed++
	s.mu.Unlock()
	return sink.Written, nil
}

func TestPooled_BackpressureBoundsQueuedItems(t *testing.T) {
	paths := writeNumberedDumps(t, t.TempDir(), 4, 30)
	st := &slowStage{delay: time.Millisecond}
	const workers, capacity = 4, 1
	run, err := StartPooled[string](context.Background(), paths, st, Options{Workers: workers, ChannelCapacity: capacity})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := run.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if st.committed != 120 {
		t.Fatalf("expected 120 commits, got %d", st.committed)
	}
	if bound := capacity + workers + 1; st.maxQueued > bound {
		t.Fatalf("queued items %d exceeded bound %d", st.maxQueued, bound)
	}
}

func TestPooled_WriterFailureStopsProducers(t *testing.T) {
	paths := writeNumberedDumps(t, t.TempDir(), 4, 200)
	st := &slowStage{failOn: "A00_0003"}
	run, err := StartPooled[string](context.Background(), paths, st, Options{Workers: 3, ChannelCapacity: 2})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-run.Done():
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not finish after writer failure")
	}
	err = run.Wait()
	var swe *SinkWriteError
	if !errors.As(err, &swe) || swe.Name != "A00_0003" {
		t.Fatalf("expected writer error, got %v", err)
	}
}

func TestPooled_SQLiteDuplicatesAreSkipped(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeDump(t, dir, "a.json", "Alpha", "Beta", "!", "Gamma"),
		writeDump(t, dir, "b.json", "Beta", "Delta"),
	}
	db, err := sink.OpenSQL(context.Background(), filepath.Join(dir, "out.sqlite"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()
	run, err := StartPooled[sink.Row](context.Background(), paths, db, Options{Workers: 2, ChannelCapacity: 1})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := run.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	st := run.Stats()
	if st.Processed != 5 || st.Written != 4 || st.Skipped != 1 || st.DecodeErrors != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	n, err := db.Count(context.Background())
	if err != nil || n != 4 {
		t.Fatalf("expected 4 rows, got %d %v", n, err)
	}
}

func TestPooled_LimitCancels(t *testing.T) {
	paths := writeNumberedDumps(t, t.TempDir(), 3, 50)
	st := &slowStage{}
	run, err := StartPooled[string](context.Background(), paths, st, Options{Workers: 3, Limit: 40})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := run.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Status() != Cancelled || st.committed != 40 {
		t.Fatalf("status=%s committed=%d", run.Status(), st.committed)
	}
}

func TestPooled_ContextCancellationFails(t *testing.T) {
	paths := writeNumberedDumps(t, t.TempDir(), 2, 500)
	ctx, cancel := context.WithCancel(context.Background())
	st := &slowStage{delay: 2 * time.Millisecond}
	run, err := StartPooled[string](ctx, paths, st, Options{Workers: 2, ChannelCapacity: 1})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := run.Wait(); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

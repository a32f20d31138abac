package pipeline

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/flarebyte/thoth-scribe/internal/sink"
)

// Status is the lifecycle position of a run.
type Status int

const (
	Running Status = iota
	Completed
	Cancelled
	Failed
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time copy of the run counters. Every admitted record
// ends up in exactly one of Written, Skipped, WriteFailed or Filtered once
// the run is over; DecodeErrors counts elements that were never admitted.
type Stats struct {
	Processed    uint64 `json:"processed"`
	Written      uint64 `json:"written"`
	Skipped      uint64 `json:"skipped"`
	WriteFailed  uint64 `json:"writeFailed"`
	Filtered     uint64 `json:"filtered"`
	DecodeErrors uint64 `json:"decodeErrors"`
}

// State is shared by every worker of one run.
type State struct {
	limit uint64

	processed    atomic.Uint64
	written      atomic.Uint64
	skipped      atomic.Uint64
	writeFailed  atomic.Uint64
	filtered     atomic.Uint64
	decodeErrors atomic.Uint64

	stop      atomic.Bool
	cancelled atomic.Bool
	finished  atomic.Bool

	mu     sync.Mutex
	err    error
	failed chan struct{}

	progress *progressReporter
}

// NewState returns a running state. A zero limit means unlimited.
func NewState(limit uint64) *State {
	return &State{limit: limit, failed: make(chan struct{})}
}

// Admit counts one more record unless the limit has been reached, in which
// case it requests cancellation and reports false. The counter never passes
// the limit.
func (s *State) Admit() (uint64, bool) {
	for {
		cur := s.processed.Load()
		if s.limit > 0 && cur >= s.limit {
			s.Cancel()
			return cur, false
		}
		if s.processed.CompareAndSwap(cur, cur+1) {
			s.progress.processed(cur + 1)
			return cur + 1, true
		}
	}
}

// Record accounts for the sink outcome of an admitted record.
func (s *State) Record(out sink.Outcome, name string) {
	switch out {
	case sink.Written:
		s.written.Add(1)
	case sink.Skipped:
		s.progress.skipped(s.skipped.Add(1), name)
	case sink.Failed:
		s.writeFailed.Add(1)
	}
}

// Filter accounts for an admitted record dropped by the record filter.
func (s *State) Filter() { s.filtered.Add(1) }

// DecodeError accounts for a malformed element.
func (s *State) DecodeError() { s.decodeErrors.Add(1) }

// Cancel asks every worker to stop before its next record. It is not an error.
func (s *State) Cancel() {
	s.cancelled.Store(true)
	s.stop.Store(true)
}

// Fail latches err if it is the first failure and stops the run. Later errors
// are dropped. ErrCancelled is treated as Cancel. It reports whether err was
// latched.
func (s *State) Fail(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCancelled) {
		s.Cancel()
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop.Store(true)
	if s.err != nil {
		return false
	}
	s.err = err
	close(s.failed)
	return true
}

// Stopped reports whether workers should stop picking up records.
func (s *State) Stopped() bool { return s.stop.Load() }

// Failed is closed once a failure has been latched.
func (s *State) Failed() <-chan struct{} { return s.failed }

// Err returns the latched failure, if any.
func (s *State) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *State) finish() { s.finished.Store(true) }

// Status reports where the run is in its lifecycle.
func (s *State) Status() Status {
	switch {
	case s.Err() != nil:
		return Failed
	case !s.finished.Load():
		return Running
	case s.cancelled.Load():
		return Cancelled
	default:
		return Completed
	}
}

// Snapshot copies the counters.
func (s *State) Snapshot() Stats {
	return Stats{
		Processed:    s.processed.Load(),
		Written:      s.written.Load(),
		Skipped:      s.skipped.Load(),
		WriteFailed:  s.writeFailed.Load(),
		Filtered:     s.filtered.Load(),
		DecodeErrors: s.decodeErrors.Load(),
	}
}

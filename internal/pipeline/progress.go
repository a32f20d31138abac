package pipeline

import "sync"

const (
	defaultProgressEvery = 100
	defaultSkipEvery     = 500
)

// EventKind names the counter an Event refers to.
type EventKind string

const (
	EventProcessed EventKind = "processed"
	EventSkipped   EventKind = "skipped"
)

// Event is a progress notification fired when a counter crosses its
// reporting interval.
type Event struct {
	Kind  EventKind
	Count uint64
	Name  string
}

type progressReporter struct {
	processedEvery uint64
	skippedEvery   uint64
	fn             func(Event)

	mu sync.Mutex
}

func newProgressReporter(processedEvery, skippedEvery uint64, fn func(Event)) *progressReporter {
	if fn == nil {
		return nil
	}
	if processedEvery == 0 {
		processedEvery = defaultProgressEvery
	}
	if skippedEvery == 0 {
		skippedEvery = defaultSkipEvery
	}
	return &progressReporter{processedEvery: processedEvery, skippedEvery: skippedEvery, fn: fn}
}

func (p *progressReporter) processed(n uint64) {
	if p == nil || n%p.processedEvery != 0 {
		return
	}
	p.emit(Event{Kind: EventProcessed, Count: n})
}

func (p *progressReporter) skipped(n uint64, name string) {
	if p == nil || n%p.skippedEvery != 0 {
		return
	}
	p.emit(Event{Kind: EventSkipped, Count: n, Name: name})
}

// emit serializes callbacks so fn never runs concurrently with itself.
func (p *progressReporter) emit(ev Event) {
	p.mu.Lock()
	p.fn(ev)
	p.mu.Unlock()
}

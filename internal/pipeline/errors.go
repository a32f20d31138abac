package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is a control signal: stop early and report success.
	ErrCancelled = errors.New("cancelled")
	// ErrUnexpectedTermination reports a worker that died without a result.
	ErrUnexpectedTermination = errors.New("unexpected worker termination")
)

// SinkWriteError is a fatal persistence failure with the input it came from.
type SinkWriteError struct {
	Path string
	Name string
	Err  error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("write %q from %s: %v", e.Name, e.Path, e.Err)
}

func (e *SinkWriteError) Unwrap() error { return e.Err }

type panicError struct {
	Path  string
	Value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("%v while processing %s: %v", ErrUnexpectedTermination, e.Path, e.Value)
}

func (e *panicError) Unwrap() error { return ErrUnexpectedTermination }

// Package cli holds build-time variables and the exit code contract shared
// by the scribe commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version and Date should be set at build time using ldflags, e.g.:
//
//	-ldflags "-X 'github.com/flarebyte/thoth-scribe/cli.Version=1.2.3' -X 'github.com/flarebyte/thoth-scribe/cli.Date=2026-02-09'"
var (
	Version string
	Date    string
)

const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// ExitError carries the process exit code for an error.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }
func (e *ExitError) ExitCode() int { return e.Code }

// Usagef reports an invalid invocation or configuration.
func Usagef(format string, args ...any) error {
	return &ExitError{Code: ExitUsage, Err: fmt.Errorf(format, args...)}
}

// Usage wraps err as an invalid invocation.
func Usage(err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: ExitUsage, Err: err}
}

// Failure wraps err as a failed run.
func Failure(err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: ExitFailure, Err: err}
}

// Args marks positional argument errors from v as invalid invocations.
func Args(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return Usage(v(cmd, args))
	}
}

package cli

import (
	"errors"
	"testing"
)

func TestExitErrorCodes(t *testing.T) {
	base := errors.New("boom")
	var ec interface{ ExitCode() int }
	if err := Failure(base); !errors.As(err, &ec) || ec.ExitCode() != ExitFailure || !errors.Is(err, base) {
		t.Fatalf("unexpected failure error %v", err)
	}
	if err := Usagef("bad flag %q", "x"); !errors.As(err, &ec) || ec.ExitCode() != ExitUsage || err.Error() != `bad flag "x"` {
		t.Fatalf("unexpected usage error %v", err)
	}
	if Usage(nil) != nil || Failure(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

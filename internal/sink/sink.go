// Package sink persists records, either as a sharded file tree or as rows of
// a compressed SQLite store.
package sink

// Outcome is what happened to one record handed to a sink.
type Outcome int

const (
	// Written means the record was persisted.
	Written Outcome = iota
	// Skipped means the record was already present.
	Skipped
	// Failed means the record could not be persisted but the run goes on.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Written:
		return "written"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Kind names a sink implementation.
type Kind string

const (
	KindFiles  Kind = "files"
	KindSQLite Kind = "sqlite"
)

// ParseKind validates a sink name.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindFiles, KindSQLite:
		return Kind(s), true
	case "sql":
		return KindSQLite, true
	default:
		return "", false
	}
}

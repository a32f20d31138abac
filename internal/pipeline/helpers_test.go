package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/flarebyte/thoth-scribe/internal/record"
	"github.com/flarebyte/thoth-scribe/internal/sink"
)

func articleJSON(name string) string {
	return fmt.Sprintf(`{"name":%q,"url":"https://en.wikipedia.org/wiki/%s","article_body":{"html":"<p>%s</p>"}}`, name, name, name)
}

// writeDump writes one input file holding the named articles; an entry of
// "!" becomes a malformed line.
func writeDump(t *testing.T, dir, file string, names ...string) string {
	t.Helper()
	lines := make([]string, 0, len(names))
	for _, n := range names {
		if n == "!" {
			lines = append(lines, "{this is not json")
			continue
		}
		lines = append(lines, articleJSON(n))
	}
	p := filepath.Join(dir, file)
	if err := os.WriteFile(p, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write dump: %v", err)
	}
	return p
}

func writeNumberedDumps(t *testing.T, dir string, files, perFile int) []string {
	t.Helper()
	var paths []string
	for f := 0; f < files; f++ {
		names := make([]string, perFile)
		for i := range names {
			names[i] = fmt.Sprintf("A%02d_%04d", f, i)
		}
		paths = append(paths, writeDump(t, dir, fmt.Sprintf("dump-%02d.json", f), names...))
	}
	return paths
}

// memorySink records every write; failOn and panicOn trigger on a name.
type memorySink struct {
	mu      sync.Mutex
	names   map[string]int
	failOn  string
	panicOn string
	err     error
}

func newMemorySink() *memorySink { return &memorySink{names: map[string]int{}} }

func (m *memorySink) Write(_ context.Context, rec record.Record) (sink.Outcome, error) {
	if rec.Name == m.panicOn {
		panic("boom")
	}
	if rec.Name == m.failOn {
		return sink.Failed, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[rec.Name]++
	return sink.Written, nil
}

func (m *memorySink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.names)
}

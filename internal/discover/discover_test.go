package discover

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/flarebyte/thoth-scribe/internal/testutil"
)

func TestExpand_WalksDirectoriesSorted(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"b.json":        "{}",
		"a.ndjson":      "{}",
		"nested/c.json": "{}",
		"notes.txt":     "skip",
	})
	got, err := Expand([]string{root}, Options{})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	want := []string{
		filepath.Join(root, "a.ndjson"),
		filepath.Join(root, "b.json"),
		filepath.Join(root, "nested", "c.json"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestExpand_HonoursGitignore(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		".gitignore":       "tmp/\nskip-*.json\n",
		"keep.json":        "{}",
		"skip-me.json":     "{}",
		"tmp/partial.json": "{}",
		"sub/.gitignore":   "local.json\n",
		"sub/local.json":   "{}",
		"sub/shared.json":  "{}",
	})
	got, err := Expand([]string{root}, Options{})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	want := []string{filepath.Join(root, "keep.json"), filepath.Join(root, "sub", "shared.json")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}

	all, err := Expand([]string{root}, Options{NoGitignore: true})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 files without gitignore, got %v", all)
	}
}

func TestExpand_PassesFilesThroughAndDedups(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{"dump.txt": "{}"})
	file := filepath.Join(root, "dump.txt")
	missing := filepath.Join(root, "missing.json")
	got, err := Expand([]string{file, missing, file}, Options{})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if !reflect.DeepEqual(got, []string{file, missing}) {
		t.Fatalf("unexpected %v", got)
	}
}

func TestExpand_CustomPatterns(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{"a.dump": "{}", "b.json": "{}"})
	got, err := Expand([]string{root}, Options{Patterns: []string{"*.dump"}})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if !reflect.DeepEqual(got, []string{filepath.Join(root, "a.dump")}) {
		t.Fatalf("unexpected %v", got)
	}
}

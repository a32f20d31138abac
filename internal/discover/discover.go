// Package discover expands command line inputs into the list of archive
// files to ingest.
package discover

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gitgitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// DefaultPatterns match the archive files picked up inside directories.
var DefaultPatterns = []string{"*.json", "*.ndjson", "*.jsonl"}

// Options controls directory expansion.
type Options struct {
	// Patterns are shell globs matched against the file name. Empty means
	// DefaultPatterns.
	Patterns    []string
	NoGitignore bool
}

// Expand returns inputs with every directory replaced by the matching files
// below it, in sorted order. Anything that is not a directory is passed
// through untouched so that the caller reports missing inputs itself.
// Duplicates are dropped, first occurrence wins.
func Expand(inputs []string, opts Options) ([]string, error) {
	patterns := opts.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	var out []string
	seen := map[string]struct{}{}
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, in := range inputs {
		st, err := os.Stat(in)
		if err != nil || !st.IsDir() {
			add(in)
			continue
		}
		files, err := walk(in, patterns, opts.NoGitignore)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			add(f)
		}
	}
	return out, nil
}

func walk(root string, patterns []string, noGitignore bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		isDir := d.IsDir()
		if !noGitignore && matchIgnore(root, rel, isDir) {
			if isDir {
				return fs.SkipDir
			}
			return nil
		}
		if isDir || !d.Type().IsRegular() {
			return nil
		}
		if matchAny(patterns, d.Name()) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func matchAny(patterns []string, name string) bool {
	for _, pat := range patterns {
		if ok, _ := filepath.Match(pat, name); ok {
			return true
		}
	}
	return false
}

// dirsForRel returns the directories from "." down to the directory of rel.
func dirsForRel(rel string) []string {
	dir := filepath.Dir(rel)
	dirs := []string{"."}
	if dir == "." {
		return dirs
	}
	cur := ""
	for _, part := range strings.Split(dir, string(os.PathSeparator)) {
		cur = filepath.Join(cur, part)
		dirs = append(dirs, cur)
	}
	return dirs
}

// readGitignorePatterns reads .gitignore patterns from dirs under root.
func readGitignorePatterns(root string, dirs []string) []gitgitignore.Pattern {
	var patterns []gitgitignore.Pattern
	for _, d := range dirs {
		b, err := os.ReadFile(filepath.Join(root, d, ".gitignore"))
		if err != nil {
			continue
		}
		var base []string
		if d != "." {
			base = strings.Split(filepath.ToSlash(d), "/")
		}
		for _, line := range strings.Split(string(b), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			patterns = append(patterns, gitgitignore.ParsePattern(line, base))
		}
	}
	return patterns
}

// matchIgnore reports whether rel is excluded by a .gitignore under root.
func matchIgnore(root, rel string, isDir bool) bool {
	patterns := readGitignorePatterns(root, dirsForRel(rel))
	if len(patterns) == 0 {
		return false
	}
	return gitgitignore.NewMatcher(patterns).Match(strings.Split(rel, string(os.PathSeparator)), isDir)
}

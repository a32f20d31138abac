// Package shard maps canonical keys to a two-level directory fan-out so no
// single directory has to hold millions of entries.
package shard

import (
	"os"
	"path/filepath"
	"sync"
)

// Prefixes returns the first one or two runes of key as directory names.
func Prefixes(key string) []string {
	out := make([]string, 0, 2)
	for _, r := range key {
		out = append(out, string(r))
		if len(out) == 2 {
			break
		}
	}
	return out
}

// Dir returns the shard directory holding key under base.
func Dir(base, key string) string {
	return filepath.Join(append([]string{base}, Prefixes(key)...)...)
}

// Path returns the full file path for key under base.
func Path(base, key string) string {
	return filepath.Join(Dir(base, key), key)
}

// DirSet remembers directories already known to exist so repeated mkdir
// calls can be skipped. The lock covers the set only, never the I/O.
type DirSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDirSet returns an empty set.
func NewDirSet() *DirSet {
	return &DirSet{seen: map[string]struct{}{}}
}

func (s *DirSet) has(dir string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[dir]
	return ok
}

// Ensure creates dir unless it is already known. Concurrent creators of the
// same directory are fine since MkdirAll tolerates existing directories.
func (s *DirSet) Ensure(dir string) error {
	if s.has(dir) {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	s.mu.Lock()
	s.seen[dir] = struct{}{}
	s.mu.Unlock()
	return nil
}

// Len returns the number of remembered directories.
func (s *DirSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

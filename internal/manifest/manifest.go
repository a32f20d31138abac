// Package manifest records what an extract run did as canonical YAML.
package manifest

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Counters mirrors the run statistics.
type Counters struct {
	Processed    uint64
	Written      uint64
	Skipped      uint64
	WriteFailed  uint64
	Filtered     uint64
	DecodeErrors uint64
}

// Summary describes one run.
type Summary struct {
	RunID     string
	Version   string
	StartedAt time.Time
	Duration  time.Duration
	Sink      string
	Output    string
	Inputs    []string
	Counters  Counters
	Outcome   string
	Error     string
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string { return uuid.NewString() }

func (s Summary) fields() map[string]any {
	inputs := make([]any, len(s.Inputs))
	for i, in := range s.Inputs {
		inputs[i] = in
	}
	m := map[string]any{
		"runId":   s.RunID,
		"sink":    s.Sink,
		"output":  s.Output,
		"inputs":  inputs,
		"outcome": s.Outcome,
		"counters": map[string]any{
			"processed":    s.Counters.Processed,
			"written":      s.Counters.Written,
			"skipped":      s.Counters.Skipped,
			"writeFailed":  s.Counters.WriteFailed,
			"filtered":     s.Counters.Filtered,
			"decodeErrors": s.Counters.DecodeErrors,
		},
	}
	if s.Version != "" {
		m["version"] = s.Version
	}
	if !s.StartedAt.IsZero() {
		m["startedAt"] = s.StartedAt.UTC().Format(time.RFC3339)
		m["durationMs"] = s.Duration.Milliseconds()
	}
	if s.Error != "" {
		m["error"] = s.Error
	}
	return m
}

// Marshal returns canonical YAML for s: keys sorted at every level.
func Marshal(s Summary) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(canonicalNode(s.fields())); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	out := bytes.TrimRight(buf.Bytes(), "\n")
	out = append(out, '\n')
	return out, nil
}

// Write writes the manifest to path, creating parent directories.
func Write(path string, s Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func scalarNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func scalarFrom(v any) *yaml.Node {
	n := &yaml.Node{}
	_ = n.Encode(v)
	return n
}

func canonicalNode(v any) *yaml.Node {
	switch x := v.(type) {
	case map[string]any:
		n := &yaml.Node{Kind: yaml.MappingNode}
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			n.Content = append(n.Content, scalarNode(k), canonicalNode(x[k]))
		}
		return n
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode}
		for _, it := range x {
			n.Content = append(n.Content, canonicalNode(it))
		}
		return n
	default:
		return scalarFrom(x)
	}
}

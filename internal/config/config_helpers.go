package config

import (
	"fmt"

	"cuelang.org/go/cue"
)

func requireStringField(v cue.Value, name string) error {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return fmt.Errorf("missing required field: %s", name)
	}
	if f.Kind() != cue.StringKind {
		return fmt.Errorf("invalid type for field: %s (expected string)", name)
	}
	return nil
}

// parser decodes optional fields and keeps the first error.
type parser struct {
	v   cue.Value
	err error
}

// lookup returns the field at path when it exists and has the wanted kind.
func (p *parser) lookup(path string, kind cue.Kind, want string) (cue.Value, bool) {
	if p.err != nil {
		return cue.Value{}, false
	}
	f := p.v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return cue.Value{}, false
	}
	if f.Kind() != kind {
		p.err = fmt.Errorf("invalid type for field: %s (expected %s)", path, want)
		return cue.Value{}, false
	}
	return f, true
}

func (p *parser) decode(path string, f cue.Value, dst any) bool {
	if err := f.Decode(dst); err != nil {
		p.err = fmt.Errorf("invalid value for %s: %v", path, err)
		return false
	}
	return true
}

func (p *parser) string(path string, dst *string) bool {
	f, ok := p.lookup(path, cue.StringKind, "string")
	return ok && p.decode(path, f, dst)
}

func (p *parser) bool(path string, dst *bool) bool {
	f, ok := p.lookup(path, cue.BoolKind, "bool")
	return ok && p.decode(path, f, dst)
}

func (p *parser) int(path string, dst *int, min int) bool {
	f, ok := p.lookup(path, cue.IntKind, "int")
	if !ok || !p.decode(path, f, dst) {
		return false
	}
	if *dst < min {
		p.err = fmt.Errorf("invalid value for %s: must be >= %d", path, min)
		return false
	}
	return true
}

func (p *parser) strings(path string, dst *[]string) bool {
	f, ok := p.lookup(path, cue.ListKind, "list of strings")
	return ok && p.decode(path, f, dst)
}

// Package filter evaluates a sandboxed Lua predicate against each record.
package filter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/ast"
	"github.com/yuin/gopher-lua/parse"

	"github.com/flarebyte/thoth-scribe/internal/record"
)

const defaultTimeout = 2 * time.Second

// ErrTimeout is returned when a script runs past Limits.Timeout.
var ErrTimeout = errors.New("filter: sandbox timeout")

// Limits bounds a single script evaluation.
type Limits struct {
	// Timeout per record. Zero uses the default; negative disables it.
	Timeout time.Duration
}

// Script is a compiled predicate. It is safe for concurrent use; each caller
// borrows its own interpreter from a pool.
type Script struct {
	proto   *lua.FunctionProto
	timeout time.Duration
	pool    sync.Pool
}

// Compile parses code once. A bare expression such as `size > 100` is
// treated as `return (size > 100)`; anything else is compiled as written.
func Compile(code string, limits Limits) (*Script, error) {
	chunk, err := parseChunk(strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("parse filter: %w", err)
	}
	proto, err := lua.Compile(chunk, "filter")
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}
	timeout := limits.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	s := &Script{proto: proto, timeout: timeout}
	s.pool.New = func() any { return newSandboxState() }
	return s, nil
}

func parseChunk(src string) ([]ast.Stmt, error) {
	if src == "" {
		src = "return true"
	} else if !containsReturn(src) {
		if chunk, err := parse.Parse(strings.NewReader("return ("+src+")"), "filter"); err == nil {
			return chunk, nil
		}
	}
	return parse.Parse(strings.NewReader(src), "filter")
}

func newSandboxState() *lua.LState {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:    true,
		RegistrySize:    256,
		RegistryMaxSize: 4096,
	})
	openLib := func(name string, f lua.LGFunction) {
		L.Push(L.NewFunction(f))
		L.Push(lua.LString(name))
		L.Call(1, 0)
	}
	openLib(lua.BaseLibName, lua.OpenBase)
	openLib(lua.StringLibName, lua.OpenString)
	openLib(lua.TabLibName, lua.OpenTable)
	openLib(lua.MathLibName, lua.OpenMath)
	// base pulls in loaders that can reach the filesystem
	for _, name := range []string{"dofile", "loadfile", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

// Keep runs the predicate with the globals name, url, key and size set from
// rec. A nil or false result drops the record.
func (s *Script) Keep(rec record.Record) (bool, error) {
	L := s.pool.Get().(*lua.LState)
	ok, err := s.eval(L, rec)
	if err != nil {
		// the state may be mid-call; never hand it out again
		L.Close()
		return false, err
	}
	s.pool.Put(L)
	return ok, nil
}

func (s *Script) eval(L *lua.LState, rec record.Record) (bool, error) {
	if s.timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		L.SetContext(ctx)
		defer L.RemoveContext()
	}
	L.SetGlobal("name", lua.LString(rec.Name))
	L.SetGlobal("url", lua.LString(rec.URL))
	L.SetGlobal("key", lua.LString(rec.Key))
	L.SetGlobal("size", lua.LNumber(len(rec.Body)))

	L.SetTop(0)
	L.Push(L.NewFunctionFromProto(s.proto))
	if err := L.PCall(0, 1, nil); err != nil {
		if isTimeoutError(err) {
			return false, ErrTimeout
		}
		return false, fmt.Errorf("filter: %w", err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(ret), nil
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadline") || strings.Contains(msg, "context canceled")
}

// containsReturn reports whether the code contains the token "return".
func containsReturn(s string) bool {
	return strings.Contains(s, "return")
}

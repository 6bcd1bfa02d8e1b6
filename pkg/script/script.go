// Package script loads Tengo scripts used as framing hooks, user placeholder
// tags and routing matchers. Scripts run in a sandboxed VM with only safe
// stdlib modules, under an allocation cap and the caller's context deadline.
//
// A script defines one or both entry points:
//
//	transform := func(input) { return input }   // hooks and tags: string in, string out
//	match := func(input) { return input != "" } // routes: truthy result selects the hop
//
// Optional metadata: name (string), description (string).
package script

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	"github.com/waftester/desyncsim/pkg/defaults"
	"github.com/waftester/desyncsim/pkg/duration"
)

// Entry point names.
const (
	EntryTransform = "transform"
	EntryMatch     = "match"
)

// safeModules are the only Tengo stdlib modules available to scripts.
// No file I/O, no network, no OS access, no randomness.
var safeModules = stdlib.GetModuleMap("text", "fmt", "math", "times", "hex", "base64", "json")

// Script is a compiled Tengo script. It is safe for concurrent use; every
// call runs on a clone of the precompiled program.
type Script struct {
	name        string
	description string
	path        string
	transform   *tengo.Compiled
	match       *tengo.Compiled
}

// Name returns the script's declared name, or its file name without extension.
func (s *Script) Name() string { return s.name }

// Description returns the script's declared description.
func (s *Script) Description() string { return s.description }

// Path returns the file the script was loaded from, if any.
func (s *Script) Path() string { return s.path }

// HasTransform reports whether the script defines transform.
func (s *Script) HasTransform() bool { return s.transform != nil }

// HasMatch reports whether the script defines match.
func (s *Script) HasMatch() bool { return s.match != nil }

// Load reads and compiles a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	s, err := Compile(name, data)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", path, err)
	}
	s.path = path
	return s, nil
}

// Compile compiles src. fallbackName is used when the script declares no name.
func Compile(fallbackName string, src []byte) (*Script, error) {
	meta := tengo.NewScript(src)
	meta.SetImports(safeModules)
	meta.SetMaxAllocs(defaults.ScriptMaxAllocs)

	ctx, cancel := context.WithTimeout(context.Background(), duration.ScriptLoad)
	defer cancel()
	compiled, err := meta.RunContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	s := &Script{name: fallbackName}
	if v := compiled.Get("name"); !v.IsUndefined() {
		s.name = v.String()
	}
	if v := compiled.Get("description"); !v.IsUndefined() {
		s.description = v.String()
	}

	for _, entry := range []string{EntryTransform, EntryMatch} {
		if !compiled.IsDefined(entry) {
			continue
		}
		c, err := precompile(src, entry)
		if err != nil {
			return nil, err
		}
		if entry == EntryTransform {
			s.transform = c
		} else {
			s.match = c
		}
	}
	if s.transform == nil && s.match == nil {
		return nil, fmt.Errorf("%w: define %q or %q", ErrMissingEntry, EntryTransform, EntryMatch)
	}
	return s, nil
}

// precompile builds the wrapper that calls entry once per run. Compile (not
// Run) keeps the entry point from being invoked at load time.
func precompile(src []byte, entry string) (*tengo.Compiled, error) {
	wrapper := fmt.Sprintf("%s\n__result__ := %s(__input__)\n", src, entry)

	sc := tengo.NewScript([]byte(wrapper))
	sc.SetImports(safeModules)
	sc.SetMaxAllocs(defaults.ScriptMaxAllocs)
	_ = sc.Add("__input__", "")

	c, err := sc.Compile()
	if err != nil {
		return nil, fmt.Errorf("precompile %s: %w", entry, err)
	}
	return c, nil
}

func run(ctx context.Context, program *tengo.Compiled, input []byte) (*tengo.Variable, error) {
	c := program.Clone()
	if err := c.Set("__input__", string(input)); err != nil {
		return nil, err
	}
	if err := c.RunContext(ctx); err != nil {
		return nil, err
	}
	return c.Get("__result__"), nil
}

// Apply runs transform over input. The result must be a string or bytes.
// Scripts are framing.Hook and placeholder.Transformer implementations.
func (s *Script) Apply(ctx context.Context, input []byte) ([]byte, error) {
	if s.transform == nil {
		return nil, fmt.Errorf("%s: %w: %s", s.name, ErrMissingEntry, EntryTransform)
	}
	v, err := run(ctx, s.transform, input)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}
	switch out := v.Value().(type) {
	case string:
		return []byte(out), nil
	case []byte:
		return append([]byte(nil), out...), nil
	default:
		return nil, fmt.Errorf("%s: %w: got %s", s.name, ErrBadResult, v.ValueType())
	}
}

// Match runs match over input and reports whether the result is truthy.
func (s *Script) Match(ctx context.Context, input []byte) (bool, error) {
	if s.match == nil {
		return false, fmt.Errorf("%s: %w: %s", s.name, ErrMissingEntry, EntryMatch)
	}
	v, err := run(ctx, s.match, input)
	if err != nil {
		return false, fmt.Errorf("%s: %w", s.name, err)
	}
	return v.Bool(), nil
}

// LoadDir loads every script file in dir. Files that fail to load are
// returned as errors but don't prevent loading others.
func LoadDir(dir string) ([]*Script, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("read script dir %s: %w", dir, err)}
	}

	var scripts []*Script
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), defaults.ScriptExtension) {
			continue
		}
		s, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		scripts = append(scripts, s)
	}
	return scripts, errs
}

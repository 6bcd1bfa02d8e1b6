// Package config loads proxy chain definitions from YAML.
//
// A chain file names an entry hop and lists hops, each with its framing
// rules, rewrite steps, optional Tengo hooks and routes:
//
//	entry: cdn
//	hops:
//	  - id: cdn
//	    header_terminators: ["\r\n\r\n", "\n\n"]
//	    body_length_rules:
//	      - {header: Content-Length, duplicates: first}
//	    default: origin
//	  - id: origin
//	tags:
//	  upper: scripts/upper.tengo
//
// Unset fields fall back to framing.DefaultHopConfig. Script paths are
// resolved relative to the file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/waftester/desyncsim/pkg/chain"
	"github.com/waftester/desyncsim/pkg/framing"
	"github.com/waftester/desyncsim/pkg/placeholder"
	"github.com/waftester/desyncsim/pkg/script"
)

// File is a parsed chain file.
type File struct {
	Description string            `yaml:"description,omitempty"`
	Entry       string            `yaml:"entry"`
	Hops        []HopSpec         `yaml:"hops"`
	Tags        map[string]string `yaml:"tags,omitempty"`

	baseDir string
}

// HopSpec is one hop as written in YAML. Pointer and nil fields mean
// "use the default".
type HopSpec struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name,omitempty"`

	HeaderTerminators     []string `yaml:"header_terminators,omitempty"`
	HeaderLineDelimiters  []string `yaml:"header_line_delimiters,omitempty"`
	AllowFolding          *bool    `yaml:"allow_header_folding,omitempty"`
	RequestLineDelimiters []string `yaml:"request_line_delimiters,omitempty"`
	ChunkLineDelimiters   []string `yaml:"chunk_line_delimiters,omitempty"`

	LengthRules []framing.LengthRule `yaml:"body_length_rules,omitempty"`
	NoLength    string               `yaml:"no_length,omitempty"`

	DeleteHeaders []string          `yaml:"delete_headers,omitempty"`
	AddHeaders    []string          `yaml:"add_headers,omitempty"`
	MethodRewrite map[string]string `yaml:"method_rewrite,omitempty"`
	URLMode       string            `yaml:"url_mode,omitempty"`
	ForceVersion  string            `yaml:"force_version,omitempty"`

	OutputBodyEncoding string `yaml:"output_body_encoding,omitempty"`
	OutputLineEnding   string `yaml:"output_line_ending,omitempty"`
	UnfoldOnForward    *bool  `yaml:"unfold_on_forward,omitempty"`

	Hooks   HookSpec    `yaml:"hooks,omitempty"`
	Routes  []RouteSpec `yaml:"routes,omitempty"`
	Default string      `yaml:"default,omitempty"`
}

// HookSpec names the Tengo scripts for each hook point.
type HookSpec struct {
	HeaderLines   string `yaml:"header_lines,omitempty"`
	RequestLine   string `yaml:"request_line,omitempty"`
	MessageLength string `yaml:"message_length,omitempty"`
}

// RouteSpec selects the next hop.
type RouteSpec struct {
	To    string    `yaml:"to"`
	Match MatchSpec `yaml:"match"`
}

// MatchSpec is a chain.Matcher in YAML form. Script is a path to a Tengo
// file defining match.
type MatchSpec struct {
	Source  string `yaml:"source"`
	Name    string `yaml:"name,omitempty"`
	Kind    string `yaml:"kind"`
	Pattern string `yaml:"pattern,omitempty"`
	Script  string `yaml:"script,omitempty"`
}

// Load reads and parses a chain file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chain file: %w", err)
	}
	f, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse parses chain YAML. Relative script paths resolve against baseDir.
func Parse(data []byte, baseDir string) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	f.baseDir = baseDir
	if err := f.check(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Marshal renders f back to YAML.
func (f *File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}

func (f *File) check() error {
	if len(f.Hops) == 0 {
		return fmt.Errorf("%w: hops", ErrMissingRequired)
	}
	seen := make(map[string]bool, len(f.Hops))
	for i, h := range f.Hops {
		if h.ID == "" {
			return fmt.Errorf("%w: hops[%d].id", ErrMissingRequired, i)
		}
		if seen[h.ID] {
			return fmt.Errorf("%w: duplicate hop id %q", ErrInvalidConfig, h.ID)
		}
		seen[h.ID] = true
		for j, r := range h.Routes {
			if r.To == "" {
				return fmt.Errorf("%w: hops[%d].routes[%d].to", ErrMissingRequired, i, j)
			}
		}
	}
	if f.Entry == "" {
		f.Entry = f.Hops[0].ID
	}
	return nil
}

// BuildOptions are passed to every engine the file builds.
type BuildOptions struct {
	Logger      *slog.Logger
	Observer    framing.Observer
	HookTimeout time.Duration
}

func (o BuildOptions) engineOptions() []framing.Option {
	return []framing.Option{
		framing.WithLogger(o.Logger),
		framing.WithObserver(o.Observer),
		framing.WithHookTimeout(o.HookTimeout),
	}
}

// Build compiles the file into a validated chain, loading every hook and
// route script.
func (f *File) Build(opts BuildOptions) (*chain.Chain, error) {
	c := chain.New(f.Entry)
	for i := range f.Hops {
		h, err := f.buildHop(&f.Hops[i], opts)
		if err != nil {
			return nil, fmt.Errorf("hop %s: %w", f.Hops[i].ID, err)
		}
		if err := c.AddHop(h); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return c, nil
}

// HopConfig converts one hop entry into a framing configuration, hooks included.
func (f *File) HopConfig(hs *HopSpec) (*framing.HopConfig, error) {
	cfg := framing.DefaultHopConfig()
	cfg.Name = hs.ID
	if hs.Name != "" {
		cfg.Name = hs.Name
	}

	setSeqs(&cfg.HeaderTerminators, hs.HeaderTerminators)
	setSeqs(&cfg.HeaderLineDelimiters, hs.HeaderLineDelimiters)
	setSeqs(&cfg.RequestLineDelimiters, hs.RequestLineDelimiters)
	setSeqs(&cfg.ChunkLineDelimiters, hs.ChunkLineDelimiters)
	if hs.AllowFolding != nil {
		cfg.AllowFolding = *hs.AllowFolding
	}
	if hs.UnfoldOnForward != nil {
		cfg.UnfoldOnForward = *hs.UnfoldOnForward
	}
	if hs.LengthRules != nil {
		cfg.LengthRules = append([]framing.LengthRule(nil), hs.LengthRules...)
		for i := range cfg.LengthRules {
			if cfg.LengthRules[i].Duplicates == "" {
				cfg.LengthRules[i].Duplicates = framing.DuplicateFirst
			}
		}
	}
	if hs.NoLength != "" {
		cfg.NoLength = framing.NoLengthPolicy(hs.NoLength)
	}
	cfg.DeleteHeaders = hs.DeleteHeaders
	cfg.AddHeaders = hs.AddHeaders
	cfg.MethodRewrite = hs.MethodRewrite
	if hs.URLMode != "" {
		cfg.URLMode = framing.URLMode(hs.URLMode)
	}
	cfg.ForceVersion = hs.ForceVersion
	if hs.OutputBodyEncoding != "" {
		cfg.OutputBodyEncoding = framing.BodyEncoding(hs.OutputBodyEncoding)
	}
	if hs.OutputLineEnding != "" {
		cfg.OutputLineEnding = []byte(hs.OutputLineEnding)
	}

	hooks := []struct {
		path string
		dst  *framing.Hook
	}{
		{hs.Hooks.HeaderLines, &cfg.Hooks.HeaderLines},
		{hs.Hooks.RequestLine, &cfg.Hooks.RequestLine},
		{hs.Hooks.MessageLength, &cfg.Hooks.MessageLength},
	}
	for _, h := range hooks {
		if h.path == "" {
			continue
		}
		s, err := f.loadScript(h.path)
		if err != nil {
			return nil, err
		}
		if !s.HasTransform() {
			return nil, fmt.Errorf("%w: hook %s defines no transform", ErrInvalidConfig, h.path)
		}
		*h.dst = s
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}

func (f *File) buildHop(hs *HopSpec, opts BuildOptions) (*chain.Hop, error) {
	cfg, err := f.HopConfig(hs)
	if err != nil {
		return nil, err
	}
	engine, err := framing.NewEngine(cfg, append(opts.engineOptions(), framing.WithID(hs.ID))...)
	if err != nil {
		return nil, err
	}
	hop := &chain.Hop{ID: hs.ID, Engine: engine, Default: hs.Default}
	for i, r := range hs.Routes {
		m := chain.Matcher{
			Source:  chain.Source(r.Match.Source),
			Name:    r.Match.Name,
			Kind:    chain.MatchKind(r.Match.Kind),
			Pattern: r.Match.Pattern,
		}
		if r.Match.Script != "" {
			s, err := f.loadScript(r.Match.Script)
			if err != nil {
				return nil, fmt.Errorf("route %d: %w", i, err)
			}
			if !s.HasMatch() {
				return nil, fmt.Errorf("%w: route %d script %s defines no match", ErrInvalidConfig, i, r.Match.Script)
			}
			m.Script = s
		}
		hop.Routes = append(hop.Routes, chain.Route{To: r.To, Match: m})
	}
	return hop, nil
}

// ResolverOptions registers the file's user tags with a placeholder
// resolver.
func (f *File) ResolverOptions() ([]placeholder.Option, error) {
	var opts []placeholder.Option
	for name, path := range f.Tags {
		s, err := f.loadScript(path)
		if err != nil {
			return nil, fmt.Errorf("tag %s: %w", name, err)
		}
		opts = append(opts, placeholder.WithTag(name, s))
	}
	return opts, nil
}

func (f *File) loadScript(path string) (*script.Script, error) {
	if !filepath.IsAbs(path) && f.baseDir != "" {
		path = filepath.Join(f.baseDir, path)
	}
	return script.Load(path)
}

func setSeqs(dst *[][]byte, src []string) {
	if src == nil {
		return
	}
	out := make([][]byte, len(src))
	for i, s := range src {
		out[i] = []byte(s)
	}
	*dst = out
}

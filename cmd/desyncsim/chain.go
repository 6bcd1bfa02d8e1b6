package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/waftester/desyncsim/pkg/config"
	"github.com/waftester/desyncsim/pkg/placeholder"
	"github.com/waftester/desyncsim/pkg/script"
	"github.com/waftester/desyncsim/pkg/smuggling"
	"github.com/waftester/desyncsim/pkg/ui"
)

var errNoChain = errors.New("no chain given: use -chain or -preset")

// loadChain reads a chain file or a bundled preset and returns it with a
// display name.
func loadChain(path, preset string) (*config.File, string, error) {
	switch {
	case path != "" && preset != "":
		return nil, "", errors.New("-chain and -preset are mutually exclusive")
	case path != "":
		f, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return f, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), nil
	case preset != "":
		f, err := config.LoadPreset(preset)
		if err != nil {
			return nil, "", fmt.Errorf("%w (available: %s)", err, strings.Join(config.Presets(), ", "))
		}
		return f, preset, nil
	default:
		return nil, "", errNoChain
	}
}

// readInput returns the payload document from a file, stdin ("-") or the
// catalogue.
func readInput(path, payload, host string, stdin io.Reader) ([]byte, error) {
	switch {
	case path != "" && payload != "":
		return nil, errors.New("-i and -payload are mutually exclusive")
	case path == "-":
		return io.ReadAll(stdin)
	case path != "":
		return os.ReadFile(path)
	case payload != "":
		p, ok := smuggling.Find(smuggling.Payloads(host), payload)
		if !ok {
			return nil, fmt.Errorf("unknown payload %q (see '%s payloads')", payload, os.Args[0])
		}
		return []byte(p.Doc), nil
	default:
		return nil, errors.New("no input given: use -i or -payload")
	}
}

// newResolver builds a placeholder resolver with the chain file's user
// tags plus any given on the command line.
func newResolver(f *config.File, tags map[string]string, logger *slog.Logger) (*placeholder.Resolver, error) {
	opts := []placeholder.Option{placeholder.WithLogger(logger)}
	if f != nil {
		fileOpts, err := f.ResolverOptions()
		if err != nil {
			return nil, err
		}
		opts = append(opts, fileOpts...)
	}
	for name, path := range tags {
		s, err := script.Load(path)
		if err != nil {
			return nil, fmt.Errorf("tag %s: %w", name, err)
		}
		opts = append(opts, placeholder.WithTag(name, s))
	}
	return placeholder.New(opts...)
}

// setupUI applies the color and silence flags. Color stays on only when
// the report goes to a terminal.
func setupUI(noColor, silent bool, out *os.File) bool {
	ui.SetSilent(silent)
	if noColor {
		ui.SetNoColor(true)
		return false
	}
	return ui.AutoColor(out)
}

// openOutput returns stdout or a created file.
func openOutput(path string) (*os.File, error) {
	if path == "" || path == "-" {
		return os.Stdout, nil
	}
	return os.Create(path)
}

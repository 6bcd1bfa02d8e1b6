package config

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/waftester/desyncsim/presets"
)

const presetExt = ".yaml"

// Presets lists the bundled chain names.
func Presets() []string {
	entries, err := fs.ReadDir(presets.FS, ".")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), presetExt) {
			names = append(names, strings.TrimSuffix(e.Name(), presetExt))
		}
	}
	sort.Strings(names)
	return names
}

// LoadPreset parses a bundled chain. Presets carry no scripts.
func LoadPreset(name string) (*File, error) {
	data, err := presets.FS.ReadFile(name + presetExt)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPreset, name)
	}
	f, err := Parse(data, "")
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", name, err)
	}
	return f, nil
}

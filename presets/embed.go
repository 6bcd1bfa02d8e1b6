// Package presets embeds the bundled proxy chain definitions.
//
// Each file is a chain in the pkg/config YAML format modelling a known
// front-end/back-end disagreement, so a payload can be tried against it
// without writing a chain file first.
//
// Usage:
//
//	data, _ := presets.FS.ReadFile("cl-te.yaml")
package presets

import "embed"

// FS contains every bundled chain YAML file. Presets reference no scripts.
//
//go:embed *.yaml
var FS embed.FS

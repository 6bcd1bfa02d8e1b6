// Package templates embeds the bundled output templates.
//
// Usage:
//
//	data, _ := templates.FS.ReadFile("output/summary.tmpl")
package templates

import "embed"

// FS holds the report templates under output/.
//
//go:embed output/*.tmpl
var FS embed.FS

package output

import (
	"fmt"
	"io"
	"sort"
)

// Writer renders a finished report.
type Writer interface {
	Write(w io.Writer, r *Report) error
}

// Supported formats.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatTemplate = "template"
)

// Options configures New.
type Options struct {
	// Color enables lipgloss styling in the text writer.
	Color bool
	// Verbose adds headers and per-delivery input to the text writer.
	Verbose bool
	// Indent for the JSON writer; empty writes compact JSON.
	Indent string
	// Template is a built-in template name or a path to a template file.
	Template string
}

// New returns the writer for format.
func New(format string, opts Options) (Writer, error) {
	switch format {
	case "", FormatText:
		return &TextWriter{Color: opts.Color, Verbose: opts.Verbose}, nil
	case FormatJSON:
		return &JSONWriter{Indent: opts.Indent}, nil
	case FormatTemplate:
		return NewTemplateWriter(opts.Template)
	default:
		return nil, fmt.Errorf("unknown output format %q (available: %v)", format, Formats())
	}
}

// Formats lists the accepted format names.
func Formats() []string {
	f := []string{FormatText, FormatJSON, FormatTemplate}
	sort.Strings(f)
	return f
}

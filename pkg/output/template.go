package output

import (
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/waftester/desyncsim/pkg/jsonutil"
	"github.com/waftester/desyncsim/templates"
)

const builtInDir = "output"

// TemplateWriter renders the report with text/template. Sprig functions
// are available along with json, prettyJSON and severityIcon.
type TemplateWriter struct {
	tmpl *template.Template
}

// NewTemplateWriter parses a built-in template by name, or the file at
// the given path when no built-in matches.
func NewTemplateWriter(nameOrPath string) (*TemplateWriter, error) {
	if nameOrPath == "" {
		return nil, fmt.Errorf("no template specified (built-in: %s)", strings.Join(BuiltInTemplates(), ", "))
	}
	content, err := templates.FS.ReadFile(path.Join(builtInDir, nameOrPath+".tmpl"))
	if err != nil {
		content, err = os.ReadFile(nameOrPath)
		if err != nil {
			return nil, fmt.Errorf("read template %q: %w", nameOrPath, err)
		}
	}
	return ParseTemplate(nameOrPath, string(content))
}

// ParseTemplate builds a writer from template source.
func ParseTemplate(name, text string) (*TemplateWriter, error) {
	funcMap := sprig.TxtFuncMap()
	funcMap["json"] = tmplToJSON
	funcMap["prettyJSON"] = tmplPrettyJSON
	funcMap["severityIcon"] = tmplSeverityIcon

	tmpl, err := template.New(name).Funcs(funcMap).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse output template: %w", err)
	}
	return &TemplateWriter{tmpl: tmpl}, nil
}

func (tw *TemplateWriter) Write(w io.Writer, r *Report) error {
	if err := tw.tmpl.Execute(w, r); err != nil {
		return fmt.Errorf("template execution error: %w", err)
	}
	return nil
}

// BuiltInTemplates lists the embedded template names.
func BuiltInTemplates() []string {
	entries, err := templates.FS.ReadDir(builtInDir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".tmpl"); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func tmplToJSON(v any) (string, error) {
	data, err := jsonutil.Marshal(v)
	return string(data), err
}

func tmplPrettyJSON(v any) (string, error) {
	data, err := jsonutil.MarshalIndent(v, "  ")
	return string(data), err
}

func tmplSeverityIcon(severity string) string {
	switch strings.ToLower(severity) {
	case "high":
		return "[H]"
	case "medium":
		return "[M]"
	case "low":
		return "[L]"
	case "info":
		return "[I]"
	default:
		return "[-]"
	}
}

package output

import (
	"io"

	"github.com/waftester/desyncsim/pkg/jsonutil"
)

// JSONWriter writes the report as a single JSON document.
type JSONWriter struct {
	Indent string
}

func (jw *JSONWriter) Write(w io.Writer, r *Report) error {
	enc := jsonutil.NewEncoder(w)
	if jw.Indent != "" {
		enc.SetIndent(jw.Indent)
	}
	return enc.Encode(r)
}

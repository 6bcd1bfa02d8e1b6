package placeholder

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies a tag form.
type Kind string

const (
	KindStart Kind = "start"
	KindEnd   Kind = "end"
	KindInt   Kind = "int"
	KindHex   Kind = "hex"
	// KindRepeat repeats text by the length of a block: <repeat(ID,"s")>
	// or <repeat_ID("s")>.
	KindRepeat Kind = "repeat"
	// KindRepeatN repeats text a literal number of times: <repeat("s",N)>.
	KindRepeatN Kind = "repeat-n"
	// KindUser is a registered user tag: <name_ID>.
	KindUser Kind = "user"
)

var reserved = map[string]bool{
	"start": true, "end": true, "int": true, "hex": true, "repeat": true,
}

// Tag is one recognised tag in a document.
type Tag struct {
	Kind Kind
	// ID is the referenced or delimited block. Zero for KindRepeatN.
	ID int
	// Name is the user tag name for KindUser.
	Name string
	// Text is the unescaped repeat literal.
	Text  string
	Count int
	// Offset and Len locate the whole tag in the document.
	Offset int
	Len    int
}

const quoted = `"((?:[^"\\]|\\.)*)"`

var tagPattern = regexp.MustCompile(`(?s)<(?:` +
	`(start|end|int|hex)_(\d+)` +
	`|repeat_(\d+)\(\s*` + quoted + `\s*\)` +
	`|repeat\(\s*(\d+)\s*,\s*` + quoted + `\s*\)` +
	`|repeat\(\s*` + quoted + `\s*,\s*(\d+)\s*\)` +
	`|([A-Za-z][A-Za-z0-9_-]*)_(\d+)` +
	`)>`)

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// lex finds every tag in doc. Tags named after unregistered user tags are
// ordinary text.
func (r *Resolver) lex(doc []byte) ([]Tag, error) {
	var tags []Tag
	for _, m := range tagPattern.FindAllSubmatchIndex(doc, -1) {
		group := func(n int) string {
			if m[2*n] < 0 {
				return ""
			}
			return string(doc[m[2*n]:m[2*n+1]])
		}
		t := Tag{Offset: m[0], Len: m[1] - m[0]}
		var id string
		switch {
		case m[2] >= 0:
			t.Kind, id = Kind(group(1)), group(2)
		case m[6] >= 0:
			t.Kind, id, t.Text = KindRepeat, group(3), unescape(group(4))
		case m[10] >= 0:
			t.Kind, id, t.Text = KindRepeat, group(5), unescape(group(6))
		case m[14] >= 0:
			t.Kind, t.Text = KindRepeatN, unescape(group(7))
			n, err := strconv.Atoi(group(8))
			if err != nil {
				return nil, invalidf(t.Offset, "repeat count %q out of range", group(8))
			}
			t.Count = n
		default:
			name := group(9)
			if _, ok := r.tags[name]; !ok {
				continue
			}
			t.Kind, t.Name, id = KindUser, name, group(10)
		}
		if id != "" {
			n, err := strconv.Atoi(id)
			if err != nil {
				return nil, invalidf(t.Offset, "block id %q out of range", id)
			}
			t.ID = n
		}
		tags = append(tags, t)
	}
	return tags, nil
}

// unescape handles \r \n \t \" and \\ in repeat literals. Other escapes
// are kept as written.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case '"', '\\':
			b.WriteByte(s[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

package placeholder

import (
	"strconv"
	"strings"
)

// Builder assembles placeholder documents without hand-writing tags.
type Builder struct {
	parts []string
}

// NewBuilder creates an empty document builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Text adds literal text.
func (b *Builder) Text(s string) *Builder {
	b.parts = append(b.parts, s)
	return b
}

// Start opens block id.
func (b *Builder) Start(id int) *Builder {
	return b.tag("start", id)
}

// End closes block id.
func (b *Builder) End(id int) *Builder {
	return b.tag("end", id)
}

// Int adds the decimal length of block id.
func (b *Builder) Int(id int) *Builder {
	return b.tag("int", id)
}

// Hex adds the hex length of block id.
func (b *Builder) Hex(id int) *Builder {
	return b.tag("hex", id)
}

// User adds a user tag over block id.
func (b *Builder) User(name string, id int) *Builder {
	return b.tag(name, id)
}

// Block wraps the parts added by fn in block id.
func (b *Builder) Block(id int, fn func(*Builder)) *Builder {
	b.Start(id)
	fn(b)
	return b.End(id)
}

// RepeatLength repeats s once per byte of block id.
func (b *Builder) RepeatLength(id int, s string) *Builder {
	b.parts = append(b.parts, "<repeat("+strconv.Itoa(id)+","+quote(s)+")>")
	return b
}

// Repeat repeats s n times.
func (b *Builder) Repeat(s string, n int) *Builder {
	b.parts = append(b.parts, "<repeat("+quote(s)+","+strconv.Itoa(n)+")>")
	return b
}

// Build returns the completed document.
func (b *Builder) Build() string {
	return strings.Join(b.parts, "")
}

// Reset clears the builder.
func (b *Builder) Reset() *Builder {
	b.parts = nil
	return b
}

func (b *Builder) tag(name string, id int) *Builder {
	b.parts = append(b.parts, "<"+name+"_"+strconv.Itoa(id)+">")
	return b
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", `\r`, "\n", `\n`, "\t", `\t`)

// quote renders s as a repeat literal.
func quote(s string) string {
	return `"` + quoteReplacer.Replace(s) + `"`
}

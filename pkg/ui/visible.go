package ui

import (
	"strconv"
	"strings"
)

// Visible renders wire bytes so that delimiters can be read: CR, LF,
// TAB and other control bytes become escapes. When lines is set an
// actual newline follows every escaped \n, keeping the layout of the
// message. Styled escapes use EscapeStyle.
func Visible(data []byte, lines, styled bool) string {
	var b strings.Builder
	b.Grow(len(data) + len(data)/8)
	esc := func(s string) {
		if styled {
			s = EscapeStyle.Render(s)
		}
		b.WriteString(s)
	}
	for _, c := range data {
		switch {
		case c == '\r':
			esc(`\r`)
		case c == '\n':
			esc(`\n`)
			if lines {
				b.WriteByte('\n')
			}
		case c == '\t':
			esc(`\t`)
		case c == '\\':
			b.WriteString(`\\`)
		case c < 0x20 || c >= 0x7f:
			esc(`\x` + hex2(c))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func hex2(c byte) string {
	s := strconv.FormatUint(uint64(c), 16)
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

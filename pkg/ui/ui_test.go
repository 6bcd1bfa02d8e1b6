package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	SetNoColor(true)
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(prev)
		SetSilent(false)
	})
	return &buf
}

func TestVisible(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		lines  bool
		expect string
	}{
		{"crlf", "GET / HTTP/1.1\r\n\r\n", false, `GET / HTTP/1.1\r\n\r\n`},
		{"crlf lines", "a\r\nb\n", true, "a\\r\\n\nb\\n\n"},
		{"tab and nul", "a\tb\x00", false, `a\tb\x00`},
		{"high byte", "\xff", false, `\xff`},
		{"backslash", `a\b`, false, `a\\b`},
		{"empty", "", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, Visible([]byte(tt.in), tt.lines, false))
		})
	}
}

func TestVisible_StyledNoColor(t *testing.T) {
	SetNoColor(true)
	assert.Equal(t, `a\r\n`, Visible([]byte("a\r\n"), false, true))
}

func TestPrintHelpers(t *testing.T) {
	buf := captureOutput(t)

	PrintSuccess("framed")
	PrintWarning("pending")
	PrintError("broken")
	PrintInfo("note")
	PrintConfigLine("Chain", "cl-te")

	out := buf.String()
	assert.Contains(t, out, "[+] framed")
	assert.Contains(t, out, "[!] pending")
	assert.Contains(t, out, "[X] broken")
	assert.Contains(t, out, "* note")
	assert.Contains(t, out, "Chain:")
	assert.Contains(t, out, "cl-te")
}

func TestSilentKeepsErrors(t *testing.T) {
	buf := captureOutput(t)
	SetSilent(true)

	PrintSuccess("hidden")
	PrintInfo("hidden")
	PrintSection("hidden")
	PrintError("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestBracketed(t *testing.T) {
	SetNoColor(true)
	got := Bracketed(SeverityBracket("HIGH"), CategoryBracket("CL.TE"), HopBracket("back"))
	assert.Equal(t, "[high] [CL.TE] [back]", stripPadding(got))
}

func TestPrintBanner(t *testing.T) {
	buf := captureOutput(t)
	PrintBanner()
	require.NotEmpty(t, buf.String())
	assert.Contains(t, buf.String(), "v")
}

func TestIcon(t *testing.T) {
	got := Icon("✔", "+")
	if UnicodeTerminal() {
		assert.Equal(t, "✔", got)
	} else {
		assert.Equal(t, "+", got)
	}
}

// stripPadding drops the single-space padding badges carry.
func stripPadding(s string) string {
	var b bytes.Buffer
	prev := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' && (prev == '[' || (i+1 < len(s) && s[i+1] == ']')) {
			continue
		}
		b.WriteByte(c)
		prev = c
	}
	return b.String()
}

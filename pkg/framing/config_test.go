package framing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHopConfig_Valid(t *testing.T) {
	require.NoError(t, DefaultHopConfig().Validate())
}

func TestHopConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*HopConfig)
		field  string
	}{
		{"no terminators", func(c *HopConfig) { c.HeaderTerminators = nil }, "header_terminators"},
		{"empty terminator", func(c *HopConfig) { c.HeaderTerminators = seqs("\r\n\r\n", "") }, "header_terminators[1]"},
		{"no line delimiters", func(c *HopConfig) { c.HeaderLineDelimiters = nil }, "header_line_delimiters"},
		{"no request line delimiters", func(c *HopConfig) { c.RequestLineDelimiters = [][]byte{} }, "request_line_delimiters"},
		{"no chunk delimiters", func(c *HopConfig) { c.ChunkLineDelimiters = nil }, "chunk_line_delimiters"},
		{"empty line ending", func(c *HopConfig) { c.OutputLineEnding = nil }, "output_line_ending"},
		{"rule without header", func(c *HopConfig) { c.LengthRules[1].Header = "" }, "body_length_rules[1]"},
		{"bad duplicates", func(c *HopConfig) { c.LengthRules[0].Duplicates = "newest" }, "duplicate handling"},
		{"bad no-length", func(c *HopConfig) { c.NoLength = "guess" }, "no-length policy"},
		{"bad url mode", func(c *HopConfig) { c.URLMode = "rot13" }, "url mode"},
		{"bad encoding", func(c *HopConfig) { c.OutputBodyEncoding = "gzip" }, "body encoding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultHopConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	var nilCfg *HopConfig
	assert.ErrorIs(t, nilCfg.Validate(), ErrInvalidConfig)
}

func TestHopConfig_EmptyRulesAllowed(t *testing.T) {
	cfg := DefaultHopConfig()
	cfg.LengthRules = nil
	assert.NoError(t, cfg.Validate())
}

func TestHopConfig_CloneIsDeep(t *testing.T) {
	orig := DefaultHopConfig()
	orig.MethodRewrite = map[string]string{"GET": "POST"}
	orig.AddHeaders = []string{"Via: a"}

	c := orig.Clone()
	require.Equal(t, orig, c)

	c.HeaderTerminators[0][0] = 'X'
	c.LengthRules[0].Header = "X-Length"
	c.MethodRewrite["GET"] = "PUT"
	c.AddHeaders[0] = "Via: b"
	c.OutputLineEnding[0] = '\n'

	assert.Equal(t, "\r\n\r\n", string(orig.HeaderTerminators[0]))
	assert.Equal(t, "Transfer-Encoding", orig.LengthRules[0].Header)
	assert.Equal(t, "POST", orig.MethodRewrite["GET"])
	assert.Equal(t, "Via: a", orig.AddHeaders[0])
	assert.Equal(t, "\r\n", string(orig.OutputLineEnding))

	var nilCfg *HopConfig
	assert.Nil(t, nilCfg.Clone())
}

func TestEnumsValid(t *testing.T) {
	assert.True(t, DuplicateLast.Valid())
	assert.False(t, Duplicates("").Valid())
	assert.True(t, BodyChunked.Valid())
	assert.True(t, NoLengthReadRemaining.Valid())
	assert.True(t, URLEncode.Valid())
	assert.False(t, URLMode("").Valid())
}

package framing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headersOf(t *testing.T, raw string) []Header {
	t.Helper()
	return ParseHeaderLines([]byte(raw), DefaultHopConfig())
}

func TestResolveLength_DuplicateTieBreak(t *testing.T) {
	headers := headersOf(t, "Content-Length: 5\r\nContent-Length: 10")

	tests := []struct {
		dup  Duplicates
		want int64
	}{
		{DuplicateFirst, 5},
		{DuplicateLast, 10},
	}
	for _, tt := range tests {
		t.Run(string(tt.dup), func(t *testing.T) {
			cfg := DefaultHopConfig()
			cfg.LengthRules = []LengthRule{{Header: "Content-Length", Duplicates: tt.dup}}
			l, err := ResolveLength(headers, cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, l.Count)
			assert.False(t, l.Chunked)
		})
	}

	t.Run("error", func(t *testing.T) {
		cfg := DefaultHopConfig()
		cfg.LengthRules = []LengthRule{{Header: "Content-Length", Duplicates: DuplicateError}}
		_, err := ResolveLength(headers, cfg)
		require.ErrorIs(t, err, ErrAmbiguousLength)

		var amb *AmbiguousLengthError
		require.True(t, errors.As(err, &amb))
		assert.Equal(t, []string{"5", "10"}, amb.Values)
		assert.Contains(t, err.Error(), "2 \"Content-Length\" headers")
	})
}

func TestResolveLength_RuleOrderDecides(t *testing.T) {
	headers := headersOf(t, "Transfer-Encoding: chunked\r\nContent-Length: 5")
	te := LengthRule{Header: "Transfer-Encoding", Chunked: true, Duplicates: DuplicateLast}
	cl := LengthRule{Header: "Content-Length", Duplicates: DuplicateError}

	t.Run("TE first", func(t *testing.T) {
		cfg := DefaultHopConfig()
		cfg.LengthRules = []LengthRule{te, cl}
		l, err := ResolveLength(headers, cfg)
		require.NoError(t, err)
		assert.True(t, l.Chunked)
		assert.Equal(t, 0, l.Rule)
		assert.Equal(t, "Transfer-Encoding", l.Header)
	})

	t.Run("CL first", func(t *testing.T) {
		cfg := DefaultHopConfig()
		cfg.LengthRules = []LengthRule{cl, te}
		l, err := ResolveLength(headers, cfg)
		require.NoError(t, err)
		assert.False(t, l.Chunked)
		assert.Equal(t, int64(5), l.Count)
		assert.Equal(t, 0, l.Rule)
	})
}

func TestResolveLength_SkipsRulesWithoutMatches(t *testing.T) {
	l, err := ResolveLength(headersOf(t, "Host: a\r\ncontent-length: 7"), DefaultHopConfig())
	require.NoError(t, err)
	assert.Equal(t, int64(7), l.Count)
	assert.Equal(t, 1, l.Rule)
	assert.Equal(t, "content-length", l.Header)
}

func TestResolveLength_NoRulePolicies(t *testing.T) {
	headers := headersOf(t, "Host: a")

	cfg := DefaultHopConfig()
	l, err := ResolveLength(headers, cfg)
	require.NoError(t, err)
	assert.True(t, l.NoRule())
	assert.Equal(t, int64(0), l.Count)
	assert.False(t, l.UntilEnd)

	cfg.NoLength = NoLengthReject
	_, err = ResolveLength(headers, cfg)
	assert.ErrorIs(t, err, ErrMissingLength)

	cfg.NoLength = NoLengthReadRemaining
	l, err = ResolveLength(headers, cfg)
	require.NoError(t, err)
	assert.True(t, l.UntilEnd)
}

func TestResolveLength_InvalidValues(t *testing.T) {
	for _, v := range []string{"abc", "-1", "+5", "5, 5", "0x10", "", "99999999999999999999"} {
		t.Run(v, func(t *testing.T) {
			_, err := ResolveLength(headersOf(t, "Content-Length: "+v), DefaultHopConfig())
			require.ErrorIs(t, err, ErrInvalidLength)
			var inv *InvalidLengthError
			require.True(t, errors.As(err, &inv))
			assert.Equal(t, v, inv.Value)
		})
	}
}

func TestResolveLength_ValueToken(t *testing.T) {
	cfg := DefaultHopConfig()
	cfg.LengthRules[0].Value = "chunked"

	l, err := ResolveLength(headersOf(t, "Transfer-Encoding: identity\r\nContent-Length: 3"), cfg)
	require.NoError(t, err)
	assert.False(t, l.Chunked)
	assert.Equal(t, int64(3), l.Count)

	l, err = ResolveLength(headersOf(t, "Transfer-Encoding: gzip, Chunked\r\nContent-Length: 3"), cfg)
	require.NoError(t, err)
	assert.True(t, l.Chunked)
}

func TestResolveLength_TrimName(t *testing.T) {
	headers := headersOf(t, "Transfer-Encoding : chunked\r\nContent-Length: 4")

	strict := DefaultHopConfig()
	l, err := ResolveLength(headers, strict)
	require.NoError(t, err)
	assert.False(t, l.Chunked, "strict hop must not see the padded name")

	lenient := DefaultHopConfig()
	lenient.LengthRules[0].TrimName = true
	l, err = ResolveLength(headers, lenient)
	require.NoError(t, err)
	assert.True(t, l.Chunked)
}

func TestResolveLength_IgnoresInvalidLines(t *testing.T) {
	headers := headersOf(t, "Host: a\r\n Content-Length: 9")
	l, err := ResolveLength(headers, DefaultHopConfig())
	require.NoError(t, err)
	assert.True(t, l.NoRule())
}

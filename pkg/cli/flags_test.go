package cli

import (
	"bytes"
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringSlice(t *testing.T) {
	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	var s StringSlice
	fs.Var(&s, "x", "")
	require.NoError(t, fs.Parse([]string{"-x", "a,b", "-x", " c ", "-x", ","}))
	assert.Equal(t, StringSlice{"a", "b", "c"}, s)
	assert.Equal(t, "a,b,c", s.String())
}

func TestKeyValues(t *testing.T) {
	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})
	kv := KeyValues{}
	fs.Var(kv, "tag", "")
	require.NoError(t, fs.Parse([]string{"-tag", "upper=upper.tengo", "-tag", "b = x=y"}))
	assert.Equal(t, KeyValues{"upper": "upper.tengo", "b": "x=y"}, kv)
	assert.Equal(t, "b=x=y,upper=upper.tengo", kv.String())

	assert.Error(t, fs.Parse([]string{"-tag", "novalue"}))
	assert.Error(t, KeyValues{}.Set("=x"))
}

func TestParseOffsets(t *testing.T) {
	got, err := ParseOffsets("3, 10,11", 20)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 10, 11}, got)

	got, err = ParseOffsets("", 20)
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, bad := range []string{"0", "20", "5,5", "6,2", "x"} {
		_, err := ParseOffsets(bad, 20)
		assert.Error(t, err, bad)
	}
}

func TestChunks(t *testing.T) {
	data := []byte("abcdefg")
	assert.Equal(t, [][]byte{[]byte("abcdefg")}, Chunks(data, nil, 0))
	assert.Equal(t, [][]byte{[]byte("ab"), []byte("cde"), []byte("fg")}, Chunks(data, []int{2, 5}, 0))
	assert.Equal(t, [][]byte{[]byte("abc"), []byte("def"), []byte("g")}, Chunks(data, []int{1}, 3))
	assert.Len(t, Chunks(data, nil, 1), 7)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, false).Debug("hidden")
	assert.Empty(t, buf.String())

	NewLogger(&buf, true).Debug("delivered", "hop", "front")
	assert.Contains(t, buf.String(), "hop=front")
}

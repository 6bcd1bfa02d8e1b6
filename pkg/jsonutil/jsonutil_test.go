package jsonutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	Hop    string            `json:"hop"`
	Frames int               `json:"frames"`
	Tags   map[string]string `json:"tags,omitempty"`
}

func TestMarshal_Deterministic(t *testing.T) {
	v := delivery{Hop: "front", Frames: 2, Tags: map[string]string{"b": "2", "a": "1", "c": "3"}}
	first, err := Marshal(v)
	require.NoError(t, err)
	for range 10 {
		again, err := Marshal(v)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, `{"hop":"front","frames":2,"tags":{"a":"1","b":"2","c":"3"}}`, string(first))
}

func TestMarshalIndent(t *testing.T) {
	data, err := MarshalIndent(delivery{Hop: "back"}, "  ")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"hop\": \"back\",\n  \"frames\": 0\n}", string(data))
}

func TestUnmarshal(t *testing.T) {
	var d delivery
	require.NoError(t, Unmarshal([]byte(`{"hop":"front","frames":1}`), &d))
	assert.Equal(t, delivery{Hop: "front", Frames: 1}, d)

	err := Unmarshal([]byte(`{"hop":"front","frame":1}`), &d)
	assert.Error(t, err, "unknown member must be rejected")
}

func TestValid(t *testing.T) {
	assert.True(t, Valid([]byte(`{"a":[1,2]}`)))
	assert.False(t, Valid([]byte(`{"a":`)))
	assert.False(t, Valid(nil))
}

func TestEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Encode(delivery{Hop: "a"}))
	require.NoError(t, enc.Encode(delivery{Hop: "b"}))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"hop":"a","frames":0}`, lines[0])

	buf.Reset()
	enc.SetIndent("\t")
	require.NoError(t, enc.Encode(delivery{Hop: "c"}))
	assert.Equal(t, "{\n\t\"hop\": \"c\",\n\t\"frames\": 0\n}\n", buf.String())
}

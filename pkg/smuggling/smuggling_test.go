package smuggling

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/desyncsim/pkg/framing"
	"github.com/waftester/desyncsim/pkg/placeholder"
)

func TestVulnTypes(t *testing.T) {
	types := map[VulnType]string{
		VulnCLTE:   "CL.TE",
		VulnTECL:   "TE.CL",
		VulnTETE:   "TE.TE",
		VulnCL0:    "CL.0",
		VulnDesync: "desync",
	}
	for vt, want := range types {
		assert.Equal(t, want, string(vt))
		parsed, ok := ParseVulnType(strings.ToLower(want))
		assert.True(t, ok)
		assert.Equal(t, vt, parsed)
		assert.NotEmpty(t, Describe(vt))
	}
	_, ok := ParseVulnType("H2.CL")
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	cl := framing.Length{Count: 13, Rule: 0}
	te := framing.Length{Chunked: true, Rule: 0}
	none := framing.Length{Rule: -1}

	assert.Equal(t, VulnCLTE, Classify(cl, te))
	assert.Equal(t, VulnTECL, Classify(te, cl))
	assert.Equal(t, VulnTETE, Classify(te, te))
	assert.Equal(t, VulnCL0, Classify(cl, none))
	assert.Equal(t, VulnDesync, Classify(cl, cl))
	assert.Equal(t, VulnDesync, Classify(none, none))

	assert.Equal(t, SeverityHigh, Severity(VulnCLTE))
	assert.Equal(t, SeverityMedium, Severity(VulnDesync))
}

func TestPayloads(t *testing.T) {
	payloads := Payloads("example.com")
	require.Len(t, payloads, 5+len(Obfuscations()))

	r, err := placeholder.New()
	require.NoError(t, err)
	for _, p := range payloads {
		t.Run(p.Name, func(t *testing.T) {
			assert.NotEmpty(t, p.Type)
			assert.NotEmpty(t, p.Description)
			assert.Contains(t, p.Doc, "Host: example.com\r\n")

			raw, err := p.Resolve(context.Background(), r)
			require.NoError(t, err)
			assert.NotContains(t, string(raw), "<start_")
			assert.NotContains(t, string(raw), "<int_")
		})
	}
}

func TestPayloadLengthsMatchBodies(t *testing.T) {
	r, err := placeholder.New()
	require.NoError(t, err)
	payloads := Payloads("example.com")

	clte, ok := Find(payloads, "cl.te basic")
	require.True(t, ok)
	raw, err := clte.Resolve(context.Background(), r)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Content-Length: 13\r\n")
	assert.True(t, strings.HasSuffix(string(raw), "\r\n\r\n0\r\n\r\nSMUGGLED"))

	tecl, ok := Find(payloads, "TE.CL Basic")
	require.True(t, ok)
	raw, err = tecl.Resolve(context.Background(), r)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\r\n\r\n5c\r\nGPOST")

	_, ok = Find(payloads, "nope")
	assert.False(t, ok)
}

// A measured block holding a length or repeat tag would count the tag text,
// so every catalogue block must be plain bytes.
func TestPayloadBlocksHoldNoLengthTags(t *testing.T) {
	r, err := placeholder.New()
	require.NoError(t, err)
	for _, p := range Payloads("example.com") {
		tags, err := r.Tags([]byte(p.Doc))
		require.NoError(t, err, p.Name)
		depth := 0
		for _, tag := range tags {
			switch tag.Kind {
			case placeholder.KindStart:
				depth++
			case placeholder.KindEnd:
				depth--
			default:
				assert.Zero(t, depth, "%s: %s tag inside a measured block", p.Name, tag.Kind)
			}
		}
	}
}

func TestPayloadsDesyncTwoHops(t *testing.T) {
	r, err := placeholder.New()
	require.NoError(t, err)
	payloads := Payloads("example.com")
	ctx := context.Background()

	clFirst := framing.DefaultHopConfig()
	clFirst.Name = "cl-first"
	clFirst.LengthRules = []framing.LengthRule{
		{Header: "Content-Length", Duplicates: framing.DuplicateFirst},
		{Header: "Transfer-Encoding", Chunked: true, Duplicates: framing.DuplicateLast},
	}
	teFirst := framing.DefaultHopConfig()
	teFirst.Name = "te-first"

	run := func(t *testing.T, name string, front, back *framing.HopConfig) *framing.Remainder {
		t.Helper()
		p, ok := Find(payloads, name)
		require.True(t, ok)
		raw, err := p.Resolve(ctx, r)
		require.NoError(t, err)

		fe, err := framing.NewEngine(front)
		require.NoError(t, err)
		be, err := framing.NewEngine(back)
		require.NoError(t, err)

		frames, rem, err := fe.Frame(ctx, nil, raw)
		require.NoError(t, err)
		require.Nil(t, rem, "front-end consumes the whole probe")
		require.Len(t, frames, 1)

		_, rem, err = be.Frame(ctx, nil, frames[0].Bytes())
		require.NoError(t, err)
		return rem
	}

	t.Run("CL.TE", func(t *testing.T) {
		rem := run(t, "CL.TE Basic", clFirst, teFirst)
		require.NotNil(t, rem)
		assert.Equal(t, "SMUGGLED", string(rem.Raw))
	})

	t.Run("TE.CL", func(t *testing.T) {
		rem := run(t, "TE.CL Basic", teFirst, clFirst)
		require.NotNil(t, rem)
		assert.Equal(t, framing.ReasonBodyIncomplete, rem.Reason)
		assert.True(t, strings.HasPrefix(string(rem.Raw), "GPOST / HTTP/1.1\r\n"))
		assert.Equal(t, int64(5), rem.Missing)
	})

	t.Run("TE.TE space before colon", func(t *testing.T) {
		p, ok := Find(payloads, "TE.TE Space before colon")
		require.True(t, ok)
		raw, err := p.Resolve(ctx, r)
		require.NoError(t, err)

		lenient := teFirst.Clone()
		lenient.LengthRules[0].TrimName = true
		le, err := framing.NewEngine(lenient)
		require.NoError(t, err)
		frames, rem, err := le.Frame(ctx, nil, raw)
		require.NoError(t, err)
		assert.Empty(t, frames, "lenient hop waits for the next chunk")
		require.NotNil(t, rem)
		assert.Equal(t, framing.ReasonBodyIncomplete, rem.Reason)

		se, err := framing.NewEngine(teFirst)
		require.NoError(t, err)
		frames, rem, err = se.Frame(ctx, nil, raw)
		require.NoError(t, err)
		require.Len(t, frames, 1)
		assert.Equal(t, "1\r\nZ", string(frames[0].Body))
		require.NotNil(t, rem)
		assert.Equal(t, "\r\nQ", string(rem.Raw))
	})
}

func TestObfuscationsIsCopy(t *testing.T) {
	o := Obfuscations()
	o[0].Name = "changed"
	assert.Equal(t, "Space before colon", Obfuscations()[0].Name)
}

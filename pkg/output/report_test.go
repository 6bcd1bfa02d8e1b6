package output

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/desyncsim/pkg/chain"
	"github.com/waftester/desyncsim/pkg/defaults"
	"github.com/waftester/desyncsim/pkg/framing"
	"github.com/waftester/desyncsim/pkg/smuggling"
)

const (
	getA = "GET / HTTP/1.1\r\nHost: a\r\n\r\n"
	clte = "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: 13\r\nTransfer-Encoding: chunked\r\n\r\n0\r\n\r\nSMUGGLED"
)

func newHop(t *testing.T, id string, mutate func(*framing.HopConfig)) *chain.Hop {
	t.Helper()
	cfg := framing.DefaultHopConfig()
	cfg.Name = id
	if mutate != nil {
		mutate(cfg)
	}
	e, err := framing.NewEngine(cfg)
	require.NoError(t, err)
	return &chain.Hop{ID: id, Engine: e}
}

func clOnly(c *framing.HopConfig) {
	c.LengthRules = []framing.LengthRule{{Header: "Content-Length", Duplicates: framing.DuplicateFirst}}
}

// clteReport runs the CL.TE payload through a two-hop chain and builds
// the report the frame command would.
func clteReport(t *testing.T) *Report {
	t.Helper()
	c, err := chain.Linear(newHop(t, "front", clOnly), newHop(t, "back", nil))
	require.NoError(t, err)
	r, err := chain.NewRunner(c)
	require.NoError(t, err)

	rep := NewReport("cl-te", c)
	tr, err := r.Feed(context.Background(), "s1", []byte(clte))
	require.NoError(t, err)
	rep.AddTrace(tr)
	rep.AddFindings(chain.Analyze(c, tr))
	rep.AddPending(r.Flush("s1"))
	return rep.Finalize()
}

func TestReport_CLTE(t *testing.T) {
	rep := clteReport(t)

	assert.Equal(t, defaults.ToolName, rep.Tool)
	assert.Equal(t, []string{"front", "back"}, rep.Hops)
	assert.Equal(t, "s1", rep.Stream)
	assert.Equal(t, len(clte), rep.InputBytes)
	assert.Contains(t, rep.Input, `chunked\r\n\r\n0\r\n`)
	assert.Equal(t, 1, rep.Feeds)

	require.Len(t, rep.Deliveries, 2)
	front := rep.Deliveries[0]
	assert.Empty(t, front.From)
	assert.Equal(t, "front", front.To)
	require.Len(t, front.Frames, 1)
	assert.Equal(t, "Content-Length: 13", front.Frames[0].Length)
	assert.Equal(t, "back", front.Frames[0].Next)

	back := rep.Deliveries[1]
	assert.Equal(t, "front", back.From)
	require.Len(t, back.Frames, 1)
	assert.Equal(t, "chunked (Transfer-Encoding)", back.Frames[0].Length)
	require.NotNil(t, back.Remainder)
	assert.Equal(t, "SMUGGLED", back.Remainder.Wire)

	require.Len(t, rep.Output, 1)
	assert.Equal(t, "back", rep.Output[0].Hop)
	assert.Equal(t, "POST", rep.Output[0].Method)

	require.Len(t, rep.Pending, 1)
	assert.Equal(t, "back", rep.Pending[0].Hop)
	assert.Equal(t, 8, rep.Pending[0].Remainder.Bytes)

	require.NotEmpty(t, rep.Findings)
	assert.Equal(t, smuggling.VulnCLTE, rep.Findings[0].Type)
	assert.Equal(t, smuggling.SeverityHigh, rep.Summary.Highest)
	assert.Equal(t, 2, rep.Summary.Frames)
	assert.Equal(t, 1, rep.Summary.Output)
	assert.Equal(t, 1, rep.Summary.Pending)
	assert.Zero(t, rep.Summary.Errors)
}

func TestReport_MultipleFeeds(t *testing.T) {
	c, err := chain.Linear(newHop(t, "front", nil), newHop(t, "back", nil))
	require.NoError(t, err)
	r, err := chain.NewRunner(c)
	require.NoError(t, err)

	rep := NewReport("", c)
	for _, part := range []string{getA[:10], getA[10:]} {
		tr, err := r.Feed(context.Background(), "s", []byte(part))
		require.NoError(t, err)
		rep.AddTrace(tr)
	}
	rep.Finalize()

	assert.Equal(t, 2, rep.Feeds)
	assert.Equal(t, len(getA), rep.InputBytes)
	require.Len(t, rep.Deliveries, 3)
	require.NotNil(t, rep.Deliveries[0].Remainder)
	assert.Equal(t, string(framing.ReasonHeadersIncomplete), rep.Deliveries[0].Remainder.Reason)
	assert.Equal(t, 10, rep.Deliveries[1].Prior)
	require.Len(t, rep.Output, 1)
	assert.Equal(t, "back", rep.Output[0].Hop)
}

func TestReport_FindingsDeduped(t *testing.T) {
	rep := NewReport("", nil)
	f := chain.Finding{Kind: chain.KindBoundary, Downstream: "back", Fingerprint: "abc", Severity: smuggling.SeverityLow}
	rep.AddFindings([]chain.Finding{f, f})
	rep.AddFindings([]chain.Finding{f})
	rep.Finalize()

	assert.Len(t, rep.Findings, 1)
	assert.Equal(t, smuggling.SeverityLow, rep.Summary.Highest)
}

func TestReport_NilParts(t *testing.T) {
	rep := NewReport("", nil)
	rep.AddTrace(nil)
	rep.AddPending([]chain.Pending{{Hop: "x"}})
	rep.Finalize()

	assert.Zero(t, rep.Feeds)
	assert.Empty(t, rep.Pending)
	assert.Empty(t, rep.Summary.Highest)
}

func TestDescribeLength(t *testing.T) {
	tests := []struct {
		name   string
		length framing.Length
		expect string
	}{
		{"content-length", framing.Length{Rule: 0, Header: "Content-Length", Count: 5}, "Content-Length: 5"},
		{"chunked", framing.Length{Rule: 1, Header: "Transfer-Encoding", Chunked: true}, "chunked (Transfer-Encoding)"},
		{"until end", framing.Length{Rule: -1, UntilEnd: true}, "until end of buffer"},
		{"none", framing.Length{Rule: -1}, "none (0)"},
		{"binary header", framing.Length{Rule: 0, Header: "X\xff", Count: 1}, `X\xff: 1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, DescribeLength(tt.length))
		})
	}
}

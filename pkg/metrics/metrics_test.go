package metrics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/desyncsim/pkg/chain"
	"github.com/waftester/desyncsim/pkg/framing"
)

func TestDelivered(t *testing.T) {
	c := New()
	c.Delivered(&chain.Delivery{
		To:     "back",
		Frames: []*framing.Frame{{Raw: make([]byte, 40)}, {Raw: make([]byte, 10)}},
		Remainder: &framing.Remainder{
			Raw:    []byte("SMUGGLED"),
			Reason: framing.ReasonHeadersIncomplete,
		},
	})
	c.Delivered(&chain.Delivery{
		To: "back",
		Remainder: &framing.Remainder{
			Raw:    []byte("x"),
			Reason: framing.ReasonRejected,
		},
		Err: &framing.AmbiguousLengthError{Header: "Content-Length", Values: []string{"1", "2"}},
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.deliveries.WithLabelValues("back")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.frames.WithLabelValues("back")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.remainders.WithLabelValues("back", "headers-incomplete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.remainders.WithLabelValues("back", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.framingErrors.WithLabelValues("back", "ambiguous_length")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pendingBytes.WithLabelValues("back")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.frameBytes))
}

func TestDelivered_ClearsPendingGauge(t *testing.T) {
	c := New()
	c.Delivered(&chain.Delivery{To: "a", Remainder: &framing.Remainder{Raw: []byte("abc")}})
	c.Delivered(&chain.Delivery{To: "a"})
	assert.Zero(t, testutil.ToFloat64(c.pendingBytes.WithLabelValues("a")))
}

func TestScriptFailed(t *testing.T) {
	c := New()
	c.ScriptFailed("edge", framing.HookRequestLine, errors.New("boom"))
	c.ScriptFailed("edge", framing.HookRequestLine, errors.New("boom"))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.scriptFailures.WithLabelValues("edge", "request_line")))
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&framing.AmbiguousLengthError{}, "ambiguous_length"},
		{fmt.Errorf("hop x: %w", &framing.MalformedChunkError{}), "malformed_chunk"},
		{&framing.InvalidLengthError{}, "invalid_length"},
		{framing.ErrMissingLength, "missing_length"},
		{errors.New("other"), "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err))
	}
}

func TestCollector_WithRunner(t *testing.T) {
	cfg := framing.DefaultHopConfig()
	cfg.Name = "front"
	c := New()
	e, err := framing.NewEngine(cfg, framing.WithObserver(c))
	require.NoError(t, err)
	ch, err := chain.Linear(&chain.Hop{ID: "front", Engine: e})
	require.NoError(t, err)
	r, err := chain.NewRunner(ch, chain.WithRecorder(c))
	require.NoError(t, err)

	_, err = r.Feed(context.Background(), "s", []byte("GET / HTTP/1.1\r\n\r\nGET /"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.frames.WithLabelValues("front")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.pendingBytes.WithLabelValues("front")))
}

func TestWriteTextAndHandler(t *testing.T) {
	c := New()
	c.Delivered(&chain.Delivery{To: "a", Frames: []*framing.Frame{{}}})

	var buf bytes.Buffer
	require.NoError(t, c.WriteText(&buf))
	assert.Contains(t, buf.String(), `desyncsim_frames_total{hop="a"} 1`)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "desyncsim_deliveries_total")
}

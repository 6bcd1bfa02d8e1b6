package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/waftester/desyncsim/pkg/defaults"
	"github.com/waftester/desyncsim/pkg/duration"
)

func TestOptionsDefaults(t *testing.T) {
	var o Options
	o.applyDefaults()
	assert.Equal(t, DefaultEndpoint, o.Endpoint)
	assert.Equal(t, defaults.ToolName, o.ServiceName)
	assert.Equal(t, duration.TraceConnect, o.ConnectTimeout)

	o = Options{Endpoint: "collector:4317", ServiceName: "lab"}
	o.applyDefaults()
	assert.Equal(t, "collector:4317", o.Endpoint)
	assert.Equal(t, "lab", o.ServiceName)
}

func TestNewProvider_ExportsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := NewProvider(exp, "")

	_, span := tp.Tracer("test").Start(context.Background(), "hop front")
	span.End()
	require.NoError(t, Shutdown(tp))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "hop front", spans[0].Name)

	var service string
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	assert.Equal(t, defaults.ToolName, service)
}

func TestNewExporter_Lazy(t *testing.T) {
	// the gRPC client connects lazily, so creation succeeds without a collector
	exp, err := NewExporter(context.Background(), Options{Endpoint: "127.0.0.1:1", Insecure: true})
	require.NoError(t, err)
	require.NoError(t, exp.Shutdown(context.Background()))
}

func TestShutdown_Nil(t *testing.T) {
	assert.NoError(t, Shutdown(nil))
}

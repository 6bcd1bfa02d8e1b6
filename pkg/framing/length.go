package framing

import (
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Length is the resolved body length of one message.
type Length struct {
	// Count is the fixed body size. Unused when Chunked or UntilEnd.
	Count   int64
	Chunked bool
	// UntilEnd means the body is every byte currently buffered.
	UntilEnd bool
	// Rule is the index of the deciding rule, -1 when none matched.
	Rule int
	// Header and Value identify the header that decided.
	Header string
	Value  string
}

// NoRule reports whether the length came from the no-length policy.
func (l Length) NoRule() bool { return l.Rule < 0 }

// name returns the header name as this rule compares it.
func (r LengthRule) name(h Header) string {
	if r.TrimName {
		return strings.Trim(h.Name, " \t")
	}
	return h.Name
}

func (r LengthRule) matches(h Header) bool {
	if h.Invalid || !strings.EqualFold(r.name(h), r.Header) {
		return false
	}
	if r.Value != "" {
		return httpguts.HeaderValuesContainsToken([]string{h.Value}, r.Value)
	}
	return true
}

// pick applies the rule's duplicate policy to the matching headers.
func (r LengthRule) pick(matched []Header) (Header, error) {
	switch r.Duplicates {
	case DuplicateLast:
		return matched[len(matched)-1], nil
	case DuplicateError:
		if len(matched) > 1 {
			values := make([]string, len(matched))
			for i, h := range matched {
				values[i] = h.Value
			}
			return Header{}, &AmbiguousLengthError{Header: r.Header, Values: values}
		}
	}
	return matched[0], nil
}

// ResolveLength walks the hop's length rules in order. The first rule with
// any matching header decides outright, so reordering rules is how a hop
// is made to prefer Transfer-Encoding over Content-Length or the reverse.
func ResolveLength(headers []Header, cfg *HopConfig) (Length, error) {
	for i, rule := range cfg.LengthRules {
		var matched []Header
		for _, h := range headers {
			if rule.matches(h) {
				matched = append(matched, h)
			}
		}
		if len(matched) == 0 {
			continue
		}
		h, err := rule.pick(matched)
		if err != nil {
			return Length{Rule: i}, err
		}
		l := Length{Rule: i, Header: h.Name, Value: h.Value, Chunked: rule.Chunked}
		if rule.Chunked {
			return l, nil
		}
		n, err := parseContentLength(h.Value)
		if err != nil {
			return l, &InvalidLengthError{Header: h.Name, Value: h.Value}
		}
		l.Count = n
		return l, nil
	}

	switch cfg.NoLength {
	case NoLengthReject:
		return Length{Rule: -1}, ErrMissingLength
	case NoLengthReadRemaining:
		return Length{Rule: -1, UntilEnd: true}, nil
	default:
		return Length{Rule: -1}, nil
	}
}

// parseContentLength accepts only ASCII digits; signs, spaces inside the
// number and list syntax are all rejected.
func parseContentLength(v string) (int64, error) {
	if v == "" {
		return 0, strconv.ErrSyntax
	}
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.ParseInt(v, 10, 64)
}

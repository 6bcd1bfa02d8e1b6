package chain

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/waftester/desyncsim/pkg/duration"
	"github.com/waftester/desyncsim/pkg/framing"
)

// Source is the part of a frame a matcher inspects.
type Source string

const (
	SourceHeader Source = "header"
	SourceHost   Source = "host"
	SourceCookie Source = "cookie"
	SourceTarget Source = "target"
	SourceMethod Source = "method"
)

// MatchKind is how a matcher compares the extracted value.
type MatchKind string

const (
	MatchExact  MatchKind = "exact"
	MatchPrefix MatchKind = "prefix"
	MatchRegex  MatchKind = "regex"
	MatchScript MatchKind = "script"
)

// ScriptMatcher evaluates a user routing script over the extracted value.
// *script.Script satisfies it.
type ScriptMatcher interface {
	Match(ctx context.Context, input []byte) (bool, error)
}

// Matcher selects frames by one value taken from the forwarded message.
type Matcher struct {
	Source Source
	// Name is the header or cookie name for SourceHeader and SourceCookie.
	Name    string
	Kind    MatchKind
	Pattern string
	Script  ScriptMatcher
}

// Route sends frames accepted by Match to hop To.
type Route struct {
	To    string
	Match Matcher
}

// regexCache holds compiled route patterns keyed by pattern string.
var regexCache sync.Map

func compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := regexCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	actual, _ := regexCache.LoadOrStore(pattern, re)
	return actual.(*regexp.Regexp), nil
}

// Validate checks the matcher can be evaluated.
func (m Matcher) Validate() error {
	switch m.Source {
	case SourceHeader, SourceCookie:
		if m.Name == "" {
			return fmt.Errorf("%w: %s matcher needs a name", ErrInvalidRoute, m.Source)
		}
	case SourceHost, SourceTarget, SourceMethod:
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidRoute, m.Source)
	}
	switch m.Kind {
	case MatchExact, MatchPrefix:
	case MatchRegex:
		if _, err := compile(m.Pattern); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRoute, err)
		}
	case MatchScript:
		if m.Script == nil {
			return fmt.Errorf("%w: script matcher without a script", ErrInvalidRoute)
		}
	default:
		return fmt.Errorf("%w: unknown match kind %q", ErrInvalidRoute, m.Kind)
	}
	return nil
}

// value extracts the inspected value. ok is false when the frame has no
// such header or cookie.
func (m Matcher) value(f *framing.Frame) (string, bool) {
	switch m.Source {
	case SourceMethod:
		return f.RequestLine.Method, true
	case SourceTarget:
		return f.RequestLine.Target, true
	case SourceHost:
		return headerValue(f.Headers, "Host")
	case SourceHeader:
		return headerValue(f.Headers, m.Name)
	case SourceCookie:
		for _, h := range f.Headers {
			if h.Invalid || !strings.EqualFold(strings.TrimSpace(h.Name), "Cookie") {
				continue
			}
			if v, ok := cookieValue(h.Value, m.Name); ok {
				return v, true
			}
		}
	}
	return "", false
}

// headerValue returns the first valid header named name.
func headerValue(headers []framing.Header, name string) (string, bool) {
	for _, h := range headers {
		if !h.Invalid && strings.EqualFold(strings.TrimSpace(h.Name), name) {
			return h.Value, true
		}
	}
	return "", false
}

// cookieValue finds name in a "a=1; b=2" cookie header. Malformed pairs
// are skipped rather than failing the whole header.
func cookieValue(header, name string) (string, bool) {
	for _, pair := range strings.Split(header, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && k == name {
			return strings.Trim(v, `"`), true
		}
	}
	return "", false
}

// Matches evaluates m against f. Script failures are returned as errors
// and count as no match.
func (m Matcher) Matches(ctx context.Context, f *framing.Frame) (bool, error) {
	v, ok := m.value(f)
	if !ok {
		return false, nil
	}
	switch m.Kind {
	case MatchExact:
		return v == m.Pattern, nil
	case MatchPrefix:
		return strings.HasPrefix(v, m.Pattern), nil
	case MatchRegex:
		re, err := compile(m.Pattern)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrInvalidRoute, err)
		}
		return re.MatchString(v), nil
	case MatchScript:
		hook := framing.HookFunc(func(ctx context.Context, in []byte) ([]byte, error) {
			ok, err := m.Script.Match(ctx, in)
			if err != nil || !ok {
				return nil, err
			}
			return []byte{1}, nil
		})
		out, err := framing.CallHook(ctx, duration.RouteTimeout, "route", hook, []byte(v))
		if err != nil {
			return false, err
		}
		return len(out) > 0, nil
	}
	return false, fmt.Errorf("%w: unknown match kind %q", ErrInvalidRoute, m.Kind)
}

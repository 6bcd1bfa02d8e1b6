package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/waftester/desyncsim/pkg/ui"
)

// TextWriter renders a trace for a terminal.
type TextWriter struct {
	Color   bool
	Verbose bool
}

type textPrinter struct {
	w     io.Writer
	color bool
	err   error
}

func (p *textPrinter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *textPrinter) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p *textPrinter) wire(data string) string {
	if !p.color {
		return data
	}
	return ui.EscapeStyle.Render(data)
}

func (tw *TextWriter) Write(w io.Writer, r *Report) error {
	p := &textPrinter{w: w, color: tw.Color}

	title := r.Tool + " " + r.Version
	if r.Chain != "" {
		title += " - " + r.Chain
	}
	p.printf("%s\n", p.style(ui.TitleStyle, title))
	p.printf("hops: %s\n", strings.Join(r.Hops, " -> "))
	p.printf("input (%d bytes, %d feeds): %s\n\n", r.InputBytes, r.Feeds, p.wire(r.Input))

	for _, d := range r.Deliveries {
		from := d.From
		if from == "" {
			from = "client"
		}
		p.printf("%s %s -> %s  %d bytes", p.style(ui.DividerStyle, "=="), from, p.style(ui.HopStyle, d.To), d.InputBytes)
		if d.Prior > 0 {
			p.printf(" (+%d buffered)", d.Prior)
		}
		p.printf("\n")
		if tw.Verbose {
			p.printf("   in: %s\n", p.wire(d.Input))
		}
		for i, f := range d.Frames {
			tw.frame(p, i, f)
		}
		if d.Error != "" {
			p.printf("   %s %s\n", p.style(ui.FailStyle, "error:"), d.Error)
		}
		if d.Remainder != nil {
			p.printf("   %s %s\n", p.style(ui.WarnStyle, "held:"), d.Remainder.Diagnostic)
		}
	}

	p.printf("\n%s\n", p.style(ui.SectionStyle, "> Output"))
	if len(r.Output) == 0 {
		p.printf("   (nothing left the chain)\n")
	}
	for i, f := range r.Output {
		p.printf("   #%d from %s: %s %s [%s]\n", i+1, p.style(ui.HopStyle, f.Hop), f.Method, f.Target, f.Length)
		p.printf("      %s\n", p.wire(f.Wire))
	}

	if len(r.Pending) > 0 {
		p.printf("\n%s\n", p.style(ui.SectionStyle, "> Pending"))
		for _, pr := range r.Pending {
			p.printf("   %s: %s\n", p.style(ui.HopStyle, pr.Hop), pr.Remainder.Diagnostic)
			if tw.Verbose {
				p.printf("      %s\n", p.wire(pr.Remainder.Wire))
			}
		}
	}

	p.printf("\n%s\n", p.style(ui.SectionStyle, "> Findings"))
	if len(r.Findings) == 0 {
		p.printf("   %s\n", p.style(ui.PassStyle, "hops agree on every message boundary"))
	}
	for _, f := range r.Findings {
		parts := []ui.BracketPart{{Text: f.Severity}, {Text: string(f.Kind)}}
		if p.color {
			parts = []ui.BracketPart{ui.SeverityBracket(f.Severity), ui.CategoryBracket(string(f.Kind))}
		}
		if f.Type != "" {
			parts = append(parts, ui.MutedBracket(string(f.Type)))
		}
		p.printf("   %s %s\n", bracketed(p.color, parts), f.Description)
	}

	s := r.Summary
	p.printf("\n%d deliveries, %d frames, %d output, %d errors, %d pending, %d findings\n",
		s.Deliveries, s.Frames, s.Output, s.Errors, s.Pending, s.Findings)
	return p.err
}

func (tw *TextWriter) frame(p *textPrinter, i int, f FrameReport) {
	next := f.Next
	if next == "" {
		next = "out"
	}
	p.printf("   frame %d: %s %s %s  length=%s body=%d consumed=%d -> %s\n",
		i+1, f.Method, f.Target, f.Version, f.Length, f.Body, f.Consumed, p.style(ui.HopStyle, next))
	if !tw.Verbose {
		return
	}
	for _, h := range f.Headers {
		var marks string
		if h.Folded {
			marks += " (folded)"
		}
		if h.Invalid {
			marks += " (invalid)"
		}
		p.printf("      %s: %s%s\n", ui.Visible([]byte(h.Name), false, false), ui.Visible([]byte(h.Value), false, false), marks)
	}
	p.printf("      out: %s\n", p.wire(f.Wire))
}

// bracketed renders [a] [b] parts, styled only when color is on.
func bracketed(color bool, parts []ui.BracketPart) string {
	if color {
		return ui.Bracketed(parts...)
	}
	texts := make([]string, len(parts))
	for i, part := range parts {
		texts[i] = "[" + part.Text + "]"
	}
	return strings.Join(texts, " ")
}

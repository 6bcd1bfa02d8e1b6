package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/waftester/desyncsim/pkg/cli"
	"github.com/waftester/desyncsim/pkg/duration"
	"github.com/waftester/desyncsim/pkg/jsonutil"
	"github.com/waftester/desyncsim/pkg/placeholder"
	"github.com/waftester/desyncsim/pkg/smuggling"
	"github.com/waftester/desyncsim/pkg/ui"
)

func runPayloads(args []string) {
	fs := flag.NewFlagSet("payloads", flag.ExitOnError)
	host := fs.String("host", "example.com", "Host written into the payloads")
	typeFilter := fs.String("type", "", "Only list one class: CL.TE, TE.CL, TE.TE, CL.0")
	show := fs.String("show", "", "Print one payload resolved")
	jsonOut := fs.Bool("json", false, "List as JSON")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	fs.Parse(args)

	setupUI(*noColor, false, os.Stdout)
	payloads := smuggling.Payloads(*host)

	if *show != "" {
		p, ok := smuggling.Find(payloads, *show)
		if !ok {
			exitWithError("unknown payload %q", *show)
		}
		r, err := placeholder.New()
		if err != nil {
			exitWithError("%v", err)
		}
		ctx, cancel := cli.SignalContext(duration.TraceShutdown)
		defer cancel()
		data, err := p.Resolve(ctx, r)
		if err != nil {
			exitWithError("%v", err)
		}
		ui.PrintSection(p.Name)
		fmt.Println(ui.Visible(data, true, false))
		return
	}

	if *typeFilter != "" {
		t, ok := smuggling.ParseVulnType(*typeFilter)
		if !ok {
			exitWithUsage(fmt.Sprintf("unknown type %q", *typeFilter), "desyncsim payloads [-type CL.TE]")
		}
		var kept []smuggling.Payload
		for _, p := range payloads {
			if p.Type == t {
				kept = append(kept, p)
			}
		}
		payloads = kept
	}

	if *jsonOut {
		enc := jsonutil.NewEncoder(os.Stdout)
		enc.SetIndent("  ")
		if err := enc.Encode(payloads); err != nil {
			exitWithError("%v", err)
		}
		return
	}

	width := 0
	for _, p := range payloads {
		width = max(width, len(p.Name))
	}
	for _, p := range payloads {
		fmt.Printf("%s %s  %s\n",
			ui.Bracketed(ui.SeverityBracket(smuggling.Severity(p.Type)), ui.CategoryBracket(string(p.Type))),
			p.Name+strings.Repeat(" ", width-len(p.Name)),
			ui.HelpStyle.Render(p.Description))
	}
}

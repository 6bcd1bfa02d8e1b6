package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/waftester/desyncsim/pkg/chain"
	"github.com/waftester/desyncsim/pkg/config"
	"github.com/waftester/desyncsim/pkg/ui"
)

func runCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	preset := fs.String("preset", "", "Check a bundled preset instead of files")
	quiet := fs.Bool("q", false, "Only report failures")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	fs.Parse(args)

	setupUI(*noColor, false, os.Stdout)
	paths := fs.Args()
	if len(paths) == 0 && *preset == "" {
		exitWithUsage("no chain files given", "desyncsim check [-q] FILE... | -preset NAME")
	}

	failed := 0
	check := func(label string, f *config.File, err error) {
		if err == nil {
			var c *chain.Chain
			if c, err = f.Build(config.BuildOptions{}); err == nil {
				if !*quiet {
					describeChain(label, f, c)
				}
				return
			}
		}
		failed++
		ui.PrintError(fmt.Sprintf("%s: %v", label, err))
	}

	if *preset != "" {
		f, err := config.LoadPreset(*preset)
		check(*preset, f, err)
	}
	for _, p := range paths {
		f, err := config.Load(p)
		check(p, f, err)
	}

	if failed > 0 {
		os.Exit(exitError)
	}
}

// describeChain prints the hop graph in evaluation order.
func describeChain(label string, f *config.File, c *chain.Chain) {
	ui.PrintSuccess(label + " is valid")
	if f.Description != "" {
		ui.PrintConfigLine("Description", f.Description)
	}
	ui.PrintConfigLine("Entry", c.Entry())
	order, _ := c.Order()
	ui.PrintConfigLine("Order", strings.Join(order, " -> "))
	for _, id := range order {
		hop, _ := c.Hop(id)
		cfg := hop.Engine.Config()
		var rules []string
		for _, r := range cfg.LengthRules {
			rule := r.Header
			if r.Chunked {
				rule += "(chunked)"
			}
			rules = append(rules, rule+"/"+string(r.Duplicates))
		}
		line := fmt.Sprintf("%s length=[%s] no-length=%s", cfg.Name, strings.Join(rules, " "), cfg.NoLength)
		for _, r := range hop.Routes {
			line += fmt.Sprintf(" route(%s %s %s)->%s", r.Match.Source, r.Match.Kind, r.Match.Pattern, r.To)
		}
		if hop.Default != "" {
			line += " default->" + hop.Default
		}
		ui.PrintConfigLine(id, line)
	}
}

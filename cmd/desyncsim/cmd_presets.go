package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/waftester/desyncsim/pkg/config"
	"github.com/waftester/desyncsim/pkg/ui"
)

func runPresets(args []string) {
	fs := flag.NewFlagSet("presets", flag.ExitOnError)
	show := fs.String("show", "", "Print one preset as YAML")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	fs.Parse(args)

	setupUI(*noColor, false, os.Stdout)

	if *show != "" {
		f, err := config.LoadPreset(*show)
		if err != nil {
			exitWithError("%v", err)
		}
		data, err := f.Marshal()
		if err != nil {
			exitWithError("%v", err)
		}
		os.Stdout.Write(data)
		return
	}

	for _, name := range config.Presets() {
		f, err := config.LoadPreset(name)
		if err != nil {
			ui.PrintWarning(fmt.Sprintf("%s: %v", name, err))
			continue
		}
		fmt.Printf("  %-14s %s\n", ui.HopStyle.Render(name), f.Description)
	}
}

// Command desyncsim replays byte streams through a simulated proxy chain
// and reports where the hops disagree on message boundaries.
package main

import (
	"fmt"
	"os"

	"github.com/waftester/desyncsim/pkg/defaults"
	"github.com/waftester/desyncsim/pkg/ui"
)

func printUsage() {
	ui.PrintBanner()
	os.Stderr.Sync()

	fmt.Println(ui.SectionStyle.Render("COMMANDS"))
	fmt.Println()
	commands := []struct{ name, help string }{
		{"frame   ", "Run a payload through a chain and report frames, remainders and desyncs"},
		{"resolve ", "Resolve placeholder tags in a payload document and print the bytes"},
		{"check   ", "Validate chain files and print the hop graph"},
		{"payloads", "List the built-in smuggling payload catalogue"},
		{"presets ", "List or print the bundled chain presets"},
		{"version ", "Print the version"},
	}
	for _, c := range commands {
		fmt.Printf("  %s  %s\n", ui.HopStyle.Render(c.name), c.help)
	}
	fmt.Println()

	fmt.Println(ui.SectionStyle.Render("EXAMPLES"))
	fmt.Println()
	for _, ex := range []string{
		defaults.ToolName + " frame -preset cl-te -payload \"CL.TE Basic\"",
		defaults.ToolName + " frame -chain chain.yaml -i request.txt -split 40,80 -format json",
		defaults.ToolName + " frame -preset te-te -payload \"TE.TE Space before colon\" -format template -template markdown",
		defaults.ToolName + " resolve -i request.txt -tag upper=upper.tengo",
		defaults.ToolName + " check chain.yaml",
	} {
		fmt.Printf("    %s\n", ui.ConfigValueStyle.Render(ex))
	}
	fmt.Println()
	fmt.Printf("  %s\n", ui.HelpStyle.Render("Run '"+defaults.ToolName+" <command> -h' for command flags."))
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitUsage)
	}

	switch os.Args[1] {
	case "frame", "run", "sim":
		runFrame(os.Args[2:])
	case "resolve":
		runResolve(os.Args[2:])
	case "check", "validate":
		runCheck(os.Args[2:])
	case "payloads":
		runPayloads(os.Args[2:])
	case "presets":
		runPresets(os.Args[2:])
	case "version", "-version", "--version":
		fmt.Printf("%s %s\n", defaults.ToolName, defaults.Version)
	case "-h", "--help", "help":
		printUsage()
	default:
		ui.PrintError(fmt.Sprintf("unknown command %q", os.Args[1]))
		printUsage()
		os.Exit(exitUsage)
	}
}

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/waftester/desyncsim/pkg/cli"
	"github.com/waftester/desyncsim/pkg/config"
	"github.com/waftester/desyncsim/pkg/duration"
	"github.com/waftester/desyncsim/pkg/ui"
)

func runResolve(args []string) {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	inputFile := fs.String("i", "", "Payload document, '-' for stdin")
	payloadName := fs.String("payload", "", "Catalogue payload name")
	host := fs.String("host", "example.com", "Host used by catalogue payloads")
	chainFile := fs.String("chain", "", "Chain file whose user tags to register")
	tags := cli.KeyValues{}
	fs.Var(tags, "tag", "User tag as name=script.tengo (repeatable)")
	raw := fs.Bool("raw", false, "Write the resolved bytes unescaped")
	listTags := fs.Bool("tags", false, "List the tags found in the document instead of resolving")
	outFile := fs.String("o", "", "Write to a file instead of stdout")
	verbose := fs.Bool("v", false, "Debug logs")
	fs.Parse(args)

	const usage = "desyncsim resolve (-i FILE | -payload NAME) [-chain FILE] [-tag name=script] [-raw]"
	doc, err := readInput(*inputFile, *payloadName, *host, os.Stdin)
	if err != nil {
		exitWithUsage(err.Error(), usage)
	}

	var file *config.File
	if *chainFile != "" {
		if file, err = config.Load(*chainFile); err != nil {
			exitWithError("%v", err)
		}
	}
	r, err := newResolver(file, tags, cli.NewLogger(os.Stderr, *verbose))
	if err != nil {
		exitWithError("%v", err)
	}

	if *listTags {
		found, err := r.Tags(doc)
		if err != nil {
			exitWithError("%v", err)
		}
		for _, t := range found {
			fmt.Printf("%6d  %-8s %s\n", t.Offset, t.Kind, doc[t.Offset:t.Offset+t.Len])
		}
		return
	}

	ctx, cancel := cli.SignalContext(duration.TraceShutdown)
	defer cancel()
	out, err := r.Resolve(ctx, doc)
	if err != nil {
		exitWithError("%v", err)
	}

	w, err := openOutput(*outFile)
	if err != nil {
		exitWithError("open output: %v", err)
	}
	if *raw {
		_, err = w.Write(out)
	} else {
		_, err = fmt.Fprintln(w, ui.Visible(out, true, false))
	}
	if err != nil {
		exitWithError("write: %v", err)
	}
	if w != os.Stdout {
		if err := w.Close(); err != nil {
			exitWithError("close output: %v", err)
		}
	}
	ui.PrintSuccess(fmt.Sprintf("resolved %d bytes into %d", len(doc), len(out)))
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/waftester/desyncsim/pkg/chain"
	"github.com/waftester/desyncsim/pkg/cli"
	"github.com/waftester/desyncsim/pkg/config"
	"github.com/waftester/desyncsim/pkg/duration"
	"github.com/waftester/desyncsim/pkg/metrics"
	"github.com/waftester/desyncsim/pkg/output"
	"github.com/waftester/desyncsim/pkg/tracing"
	"github.com/waftester/desyncsim/pkg/ui"
)

// simOptions is one simulation as the frame command runs it.
type simOptions struct {
	File  *config.File
	Name  string
	Input []byte
	// Raw skips placeholder resolution.
	Raw  bool
	Tags map[string]string
	// Split holds comma-separated offsets into the resolved payload; each
	// piece is a separate Feed on the same stream.
	Split      string
	SplitEvery int
	Stream     string
	Logger     *slog.Logger
	Collector  *metrics.Collector
}

// simulate resolves the payload, feeds it through the chain and builds
// the report.
func simulate(ctx context.Context, o simOptions) (*output.Report, error) {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Collector == nil {
		o.Collector = metrics.New()
	}

	payload := o.Input
	if !o.Raw {
		r, err := newResolver(o.File, o.Tags, o.Logger)
		if err != nil {
			return nil, err
		}
		if payload, err = r.Resolve(ctx, payload); err != nil {
			return nil, fmt.Errorf("resolve payload: %w", err)
		}
	}
	offsets, err := cli.ParseOffsets(o.Split, len(payload))
	if err != nil {
		return nil, err
	}

	c, err := o.File.Build(config.BuildOptions{Logger: o.Logger, Observer: o.Collector})
	if err != nil {
		return nil, err
	}
	runner, err := chain.NewRunner(c, chain.WithLogger(o.Logger), chain.WithRecorder(o.Collector))
	if err != nil {
		return nil, err
	}

	stream := o.Stream
	if stream == "" {
		stream = chain.NewStreamID()
	}
	rep := output.NewReport(o.Name, c)
	for _, part := range cli.Chunks(payload, offsets, o.SplitEvery) {
		tr, err := runner.Feed(ctx, stream, part)
		if err != nil {
			return nil, err
		}
		rep.AddTrace(tr)
		rep.AddFindings(chain.Analyze(c, tr))
	}
	rep.AddPending(runner.Flush(stream))
	return rep.Finalize(), nil
}

func runFrame(args []string) {
	fs := flag.NewFlagSet("frame", flag.ExitOnError)

	// Chain options
	chainFile := fs.String("chain", "", "Chain file (YAML)")
	preset := fs.String("preset", "", "Bundled chain preset (see 'presets')")

	// Input options
	inputFile := fs.String("i", "", "Payload document, '-' for stdin")
	payloadName := fs.String("payload", "", "Catalogue payload name (see 'payloads')")
	host := fs.String("host", "example.com", "Host used by catalogue payloads")
	raw := fs.Bool("raw", false, "Feed the input as-is, without placeholder resolution")
	tags := cli.KeyValues{}
	fs.Var(tags, "tag", "User tag as name=script.tengo (repeatable)")

	// Stream options
	split := fs.String("split", "", "Comma-separated byte offsets; each piece is fed separately")
	splitEvery := fs.Int("split-every", 0, "Feed the input N bytes at a time")
	stream := fs.String("stream", "", "Stream ID (default: random UUID)")

	// Output options
	format := fs.String("format", output.FormatText, "Output format: text, json, template")
	tmpl := fs.String("template", "summary", "Built-in template name or template file for -format template")
	outFile := fs.String("o", "", "Write the report to a file instead of stdout")
	verbose := fs.Bool("v", false, "Verbose: headers, wire bytes and debug logs")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	silent := fs.Bool("silent", false, "Suppress status messages")
	fail := fs.Bool("fail", false, "Exit with code 3 when a desync is found")

	// Observability
	metricsFile := fs.String("metrics", "", "Write Prometheus metrics (text format) to a file")
	otelEndpoint := fs.String("otel-endpoint", "", "OTLP/gRPC endpoint for per-hop spans")
	otelInsecure := fs.Bool("otel-insecure", false, "Plaintext connection to the OTLP endpoint")

	fs.Parse(args)

	const usage = "desyncsim frame (-chain FILE | -preset NAME) (-i FILE | -payload NAME) [flags]"
	file, name, err := loadChain(*chainFile, *preset)
	if err != nil {
		exitWithUsage(err.Error(), usage)
	}
	input, err := readInput(*inputFile, *payloadName, *host, os.Stdin)
	if err != nil {
		exitWithUsage(err.Error(), usage)
	}

	out, err := openOutput(*outFile)
	if err != nil {
		exitWithError("open output: %v", err)
	}
	color := setupUI(*noColor, *silent, out)
	writer, err := output.New(*format, output.Options{Color: color, Verbose: *verbose, Indent: "  ", Template: *tmpl})
	if err != nil {
		exitWithUsage(err.Error(), usage)
	}

	ui.PrintConfigBanner([]string{"Chain", "Stream", "Format"}, map[string]string{
		"Chain":  name,
		"Stream": *stream,
		"Format": *format,
	})

	ctx, cancel := cli.SignalContext(duration.TraceShutdown)
	defer cancel()

	shutdown := func() {}
	if *otelEndpoint != "" {
		tp, err := tracing.Setup(ctx, tracing.Options{Endpoint: *otelEndpoint, Insecure: *otelInsecure})
		if err != nil {
			ui.PrintWarning(fmt.Sprintf("tracing disabled: %v", err))
		} else {
			shutdown = func() {
				if err := tracing.Shutdown(tp); err != nil {
					ui.PrintWarning(fmt.Sprintf("flush spans: %v", err))
				}
			}
		}
	}
	defer shutdown()

	collector := metrics.New()
	rep, err := simulate(ctx, simOptions{
		File:       file,
		Name:       name,
		Input:      input,
		Raw:        *raw,
		Tags:       tags,
		Split:      *split,
		SplitEvery: *splitEvery,
		Stream:     *stream,
		Logger:     cli.NewLogger(os.Stderr, *verbose),
		Collector:  collector,
	})
	if err != nil {
		exitWithError("%v", err)
	}

	if err := writer.Write(out, rep); err != nil {
		exitWithError("write report: %v", err)
	}
	if out != os.Stdout {
		if err := out.Close(); err != nil {
			exitWithError("close output: %v", err)
		}
		ui.PrintSuccess(fmt.Sprintf("report written to %s", *outFile))
	}

	if *metricsFile != "" {
		if err := writeMetrics(collector, *metricsFile); err != nil {
			exitWithError("write metrics: %v", err)
		}
	}

	if *fail && len(rep.Findings) > 0 {
		ui.PrintWarning(fmt.Sprintf("%d desync finding(s), highest severity %s", len(rep.Findings), rep.Summary.Highest))
		shutdown()
		cancel()
		os.Exit(exitFindings)
	}
}

func writeMetrics(c *metrics.Collector, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.WriteText(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

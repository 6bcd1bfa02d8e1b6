// Package cli holds plumbing shared by the desyncsim subcommands.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/waftester/desyncsim/pkg/ui"
)

// SignalContext returns a context cancelled on SIGINT/SIGTERM. A second
// signal within gracePeriod exits the process with code 130.
//
//	ctx, cancel := cli.SignalContext(duration.TraceShutdown)
//	defer cancel()
func SignalContext(gracePeriod time.Duration) (context.Context, context.CancelFunc) {
	return signalContext(gracePeriod, nil, nil)
}

// signalContext takes the signal channel and exit function so tests can
// drive it without real signals.
func signalContext(gracePeriod time.Duration, sigs chan os.Signal, exit func(int)) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	own := sigs == nil
	if own {
		sigs = make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	}
	if exit == nil {
		exit = os.Exit
	}

	go func() {
		defer func() {
			if own {
				signal.Stop(sigs)
			}
		}()
		select {
		case <-sigs:
			ui.PrintWarning("interrupted, finishing the current feed (press again to abort)")
			cancel()
			select {
			case <-sigs:
				exit(130)
			case <-time.After(gracePeriod):
			}
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

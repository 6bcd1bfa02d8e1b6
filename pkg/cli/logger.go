package cli

import (
	"io"
	"log/slog"
)

// NewLogger returns a text logger for diagnostics on w. Verbose lowers
// the level to debug, which includes one line per hop delivery.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

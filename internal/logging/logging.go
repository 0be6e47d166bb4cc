// Package logging builds the zerolog loggers used by the CLI and the MCP
// server.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Options configures New.
type Options struct {
	// Verbose lowers the level to Debug.
	Verbose bool
	// JSON disables the console writer, for machine consumers.
	JSON bool
}

// New returns a logger writing to w. Info and above are logged unless
// Verbose is set.
func New(w io.Writer, opts Options) zerolog.Logger {
	level := zerolog.InfoLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}

	out := w
	if !opts.JSON {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()
}

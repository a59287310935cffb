// Package logging builds the zerolog loggers used across the service.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options selects level and output format.
type Options struct {
	// Level is one of trace, debug, info, warn, error (default info).
	Level string
	// Format is "console" (human readable) or "json" (default json).
	Format string
	// Out defaults to os.Stdout.
	Out io.Writer
}

// New returns a root logger tagged with component.
func New(component string, opt Options) zerolog.Logger {
	out := opt.Out
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(opt.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(ParseLevel(opt.Level)).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// ParseLevel maps a level name to a zerolog level; unknown names mean info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

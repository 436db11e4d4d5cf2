// Package logging bootstraps the zerolog logger shared by the backend binaries.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a logger for the named service. Pretty output is intended for
// local development only; production emits JSON lines.
func New(service, level string, pretty bool) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if pretty {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		logger = zerolog.New(output)
	} else {
		logger = zerolog.New(os.Stdout)
	}

	return logger.Level(parsed).With().
		Timestamp().
		Str("service", service).
		Logger()
}

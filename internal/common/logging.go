// Package common provides configuration, logging, versioning and shared
// constants for Folio.
package common

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger so the rest of the codebase depends on a
// single logging type.
type Logger struct {
	zerolog.Logger
}

// NewLogger returns a console logger at the given level writing to stderr.
func NewLogger(level string) *Logger {
	return NewLoggerWithOutput(level, zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	})
}

// NewLoggerWithOutput returns a logger at the given level writing to w.
// Unknown or empty level strings fall back to info.
func NewLoggerWithOutput(level string, w io.Writer) *Logger {
	return &Logger{Logger: zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()}
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// NewDefaultLogger returns an info-level console logger.
func NewDefaultLogger() *Logger {
	return NewLogger("info")
}

// NewSilentLogger returns a logger that discards everything. Tests use it
// to keep service output quiet.
func NewSilentLogger() *Logger {
	return &Logger{Logger: zerolog.New(io.Discard)}
}

package dirconv

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

var logger = DefaultLogger()

// Logger returns the package logger.
func Logger() *zerolog.Logger {
	return &logger
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	logger = l
}

// NewLogger creates a new logger instance with a specified level and output.
// Colour is used only when w is a terminal.
func NewLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    !IsTerminal(w),
	}
	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("lib", "dirconv").
		Logger()
}

// LevelFromVerbosity maps the number of -d flags to a level.
func LevelFromVerbosity(verbose int) zerolog.Level {
	switch verbose {
	case 0:
		return zerolog.WarnLevel
	case 1:
		return zerolog.InfoLevel
	case 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// NewTestLogger creates a logger instance for tests with a specified verbosity.
func NewTestLogger(w io.Writer, verbose int) zerolog.Logger {
	return NewLogger(w, LevelFromVerbosity(verbose))
}

// LogLevelFromString parses a string to a zerolog.Level.
func LogLevelFromString(levelStr string) (zerolog.Level, error) {
	return zerolog.ParseLevel(strings.ToLower(levelStr))
}

// DefaultLogger returns a logger with default settings (warn level, stderr output).
func DefaultLogger() zerolog.Logger {
	return NewLogger(os.Stderr, zerolog.WarnLevel)
}

type fder interface {
	Fd() uintptr
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(fder)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

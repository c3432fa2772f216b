// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// Logger is a printf-style facade over zerolog.  Output is human
// readable (zerolog's console format) and coloured only when written
// to a terminal.
type Logger struct {
	zl         zerolog.Logger
	level      LogLevel
	output     io.Writer
	timestamps bool
}

// NewLogger returns a Logger writing to stderr that prints messages at
// or below the given verbosity (0 = quiet, 1 = normal, 2 = verbose,
// 3 = debug).  A negative verbosity disables output entirely.
func NewLogger(verbosity int) *Logger {
	l := &Logger{
		level:      LogLevel(verbosity),
		output:     os.Stderr,
		timestamps: true,
	}
	l.zl = zerolog.New(l.console()).
		Level(zerologLevel(l.level)).
		With().
		Timestamp().
		Logger()
	return l
}

// ParseVerbosity maps a level name from the config file to a
// verbosity usable with [NewLogger].
func ParseVerbosity(name string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "error", "quiet":
		return int(LogQuiet), nil
	case "", "warn", "warning", "info":
		return int(LogNormal), nil
	case "debug", "verbose":
		return int(LogVerbose), nil
	case "trace":
		return int(LogDebug), nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) {
	l.timestamps = on
	l.zl = l.zl.Output(l.console())
}

// SetOutput overrides the output writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
	l.zl = l.zl.Output(l.console())
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// With returns a child logger that tags every line with key=value.
func (l *Logger) With(key, value string) *Logger {
	child := *l
	child.zl = l.zl.With().Str(key, value).Logger()
	return &child
}

// Info prints when verbosity ≥ 1.
func (l *Logger) Info(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

// Warn prints when verbosity ≥ 1.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

// Verbose prints when verbosity ≥ 2.
func (l *Logger) Verbose(format string, args ...interface{}) {
	if l.level >= LogVerbose {
		l.zl.Debug().Msgf(format, args...)
	}
}

// Debug prints when verbosity ≥ 3, under the same DBG label as
// Verbose.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level >= LogDebug {
		l.zl.Debug().Msgf(format, args...)
	}
}

// Error prints unless output is disabled.
func (l *Logger) Error(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}

func (l *Logger) console() zerolog.ConsoleWriter {
	cw := zerolog.ConsoleWriter{
		Out:        l.output,
		TimeFormat: "15:04:05.000",
		NoColor:    !isTerminal(l.output),
	}
	if !l.timestamps {
		cw.PartsExclude = []string{zerolog.TimestampFieldName}
	}
	return cw
}

func zerologLevel(level LogLevel) zerolog.Level {
	switch {
	case level < LogQuiet:
		return zerolog.Disabled
	case level == LogQuiet:
		return zerolog.ErrorLevel
	case level == LogNormal:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

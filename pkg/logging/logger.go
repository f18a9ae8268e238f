// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs every page request and cache lookup.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs run start and completion.
	LevelInfo LogLevel = "info"

	// LevelWarn logs anomalies that do not stop the run.
	LevelWarn LogLevel = "warn"

	// LevelError logs failures only.
	LevelError LogLevel = "error"
)

// Component names used with NewLogger.
const (
	ComponentCLI        = "cli"
	ComponentExporter   = "exporter"
	ComponentPagination = "pagination"
	ComponentClient     = "search-client"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
// Loggers derived from the global logger before Setup keep the old output.
func Setup(cfg Config) zerolog.Logger {
	level, err := ParseLevel(string(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05.000"}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to a zerolog.Level.
// Names are case-insensitive; "warning" is accepted for warn.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: one line per page request (page, per_page, status, items, duration),
// cache hits and misses, rate limit updates.
//
// Info: run start (query, output path, page size) and completion
// (pages, items, duration).
//
// Warn: page limit reached before the reported total, cache errors,
// rate limit running low, unreadable rate limit headers.
//
// Error: the error that ended the run, exhausted rate limit.
//
// Context Fields:
//   - component: emitting package
//   - page, per_page: page being fetched
//   - total, items, accumulated: result counts
//   - status: HTTP status code
//   - error_kind: CONFIGURATION, TRANSPORT, PROTOCOL or DECODE
//   - duration: request or run duration
//
// The token is never logged.

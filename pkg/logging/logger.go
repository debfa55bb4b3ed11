// Package logging configures zerolog for scroll exports.
//
// Logs always go to stderr (or a caller-supplied writer) because stdout may
// carry exported values.
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
	// LevelDebug adds per-request and per-batch detail.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs the export lifecycle.
	LevelInfo LogLevel = "info"

	// LevelWarn logs retries and failed cursor releases.
	LevelWarn LogLevel = "warn"

	// LevelError logs aborted exports only.
	LevelError LogLevel = "error"
)

// levels maps accepted names to their LogLevel and zerolog level.
var levels = map[string]struct {
	name  LogLevel
	level zerolog.Level
}{
	"debug":   {LevelDebug, zerolog.DebugLevel},
	"info":    {LevelInfo, zerolog.InfoLevel},
	"warn":    {LevelWarn, zerolog.WarnLevel},
	"warning": {LevelWarn, zerolog.WarnLevel},
	"error":   {LevelError, zerolog.ErrorLevel},
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level written. Empty means info.
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console format.
	Pretty bool

	// Output receives the logs (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns JSON logs at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(zerologLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel validates a level name from configuration.
func ParseLevel(s string) (LogLevel, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return LevelInfo, nil
	}
	l, ok := levels[key]
	if !ok {
		return "", fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
	return l.name, nil
}

// zerologLevel falls back to info for unknown names.
func zerologLevel(level LogLevel) zerolog.Level {
	if l, ok := levels[strings.ToLower(string(level))]; ok {
		return l.level
	}
	return zerolog.InfoLevel
}

// NewLogger derives a logger for one component from the global logger.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: per-request flow
//   - Scroll id replaced after an advance
//   - Batch written (size, batch number)
//   - Empty batch reached
//
// Info: export lifecycle
//   - Export started (index, fields, page size)
//   - Scroll cursor opened / released
//   - Progress every N batches
//   - Final summary ("export completed, N records written")
//
// Warn: recovered or suppressed problems
//   - Retry attempts with backoff
//   - Cursor release failures (never fatal)
//
// Error: fatal aborts
//   - Retry attempts exhausted
//   - Final summary of an aborted export
//
// Context Fields:
//   - component: transport, batch-fetcher, cursor, exporter, metrics, cli
//   - run_id: export run identifier
//   - index: scrolled index
//   - operation: open, advance, close
//   - attempt, max_attempts, backoff: retry state
//   - error_kind: pagination.ErrorKind of the failure
//   - records, batches, advances: export counters

// Package logging configures the zerolog logger shared by the proxy components.
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
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Component names used for the "component" field.
const (
	ComponentServer    = "server"
	ComponentLookup    = "lookup"
	ComponentCache     = "cache"
	ComponentInvoker   = "invoker"
	ComponentRateLimit = "ratelimit"
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

// ParseLevel validates a level name. "warning" is accepted as an alias of "warn".
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// Setup configures the global zerolog logger.
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

// zerologLevel converts LogLevel to zerolog.Level, defaulting to info.
func zerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache hits, misses and sweeps
//   - Rejected queries
//   - Tool invocations and their arguments
//
// Info: Normal operation events
//   - Completed HTTP requests
//   - Server startup/shutdown
//
// Warn: Conditions that yield an error response but need no operator action
//   - Tool exited non-zero or timed out
//   - Rate limit rejections
//
// Error: Error conditions requiring attention
//   - recht binary missing or not executable
//   - Recovered panics
//   - Configuration errors
//
// Context Fields:
//   - component: emitting component (server, lookup, cache, invoker, ratelimit)
//   - request_id: X-Request-ID of the HTTP request
//   - cache_key: normalized query ("BGB 1A 4")
//   - args: recht argument list
//   - error_kind: validation, binary_missing, timeout, lookup_failed
//   - exit_code, stderr: tool diagnostics, never sent to clients
//   - status: HTTP status code
//   - duration: request or invocation duration

// Package logging configures zerolog for the whoop CLI and its packages.
package logging

import (
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

	// LevelDisabled turns logging off.
	LevelDisabled LogLevel = "disabled"
)

// Format selects the log encoding.
type Format string

const (
	// FormatConsole writes human-readable lines (zerolog.ConsoleWriter).
	FormatConsole Format = "console"

	// FormatJSON writes one JSON object per line.
	FormatJSON Format = "json"
)

// Environment variables read by FromEnv.
const (
	EnvLevel  = "WHOOP_LOG_LEVEL"
	EnvFormat = "WHOOP_LOG_FORMAT"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Format is the output encoding (default: console).
	Format Format

	// Output is the writer to output logs to (default: os.Stderr).
	// Command output goes to stdout, so logs never mix with --json payloads.
	Output io.Writer
}

// DefaultConfig returns the CLI default: warnings and errors on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelWarn,
		Format: FormatConsole,
		Output: os.Stderr,
	}
}

// FromEnv overlays WHOOP_LOG_LEVEL and WHOOP_LOG_FORMAT onto DefaultConfig.
func FromEnv(getenv func(string) string) Config {
	cfg := DefaultConfig()
	if v := strings.TrimSpace(getenv(EnvLevel)); v != "" {
		cfg.Level = LogLevel(strings.ToLower(v))
	}
	if strings.EqualFold(strings.TrimSpace(getenv(EnvFormat)), string(FormatJSON)) {
		cfg.Format = FormatJSON
	}
	return cfg
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format != FormatJSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.WarnLevel
	}
}

// NewLogger creates a logger tagged with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: request flow (path, status, page cursor), repeated pagination
// cursors, cached-token hits, fan-out worker progress, quota updates.
//
// Info: 401 responses that trigger a refresh, token refreshes, login milestones.
//
// Warn: API error statuses, failed or empty token refreshes, rejected token
// requests and OAuth callbacks, low or exceeded rate limit quota.
//
// Error: network failures, failed persistence of a refreshed credential,
// nearly exhausted quota.
//
// Context Fields:
//   - component: package emitting the entry (client, token, oauth, pagination, fanout, whoop)
//   - path: API path
//   - status: HTTP status code
//   - duration: request duration
//   - kind: apierror kind

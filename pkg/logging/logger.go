// Package logging configures the process-wide zerolog logger and hands out
// component loggers.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

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

// ParseLevel validates a level name from config, env or flags.
// "warning" is accepted as an alias of warn.
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
		return "", fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// Service is attached to every line when set.
	Service string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:   LevelInfo,
		Pretty:  false,
		Output:  os.Stderr,
		Service: "sw-proxy",
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()

	log.Logger = logger
	zerolog.DefaultContextLogger = &log.Logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level, falling back to info.
func parseLevel(level LogLevel) zerolog.Level {
	parsed, err := ParseLevel(string(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	switch parsed {
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
//   - Cache hit/miss with url and remaining TTL
//   - Upstream fetches and committed entries (status, etag)
//   - Image stage transitions and 304 short-circuits
//   - Clients that went away mid-request
//
// Info: Normal operation events
//   - Access log (one line per request)
//   - Placeholder served
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Upstream transport failures (network, timeout)
//   - Upstream responses rejected (non-2xx, wrong content type)
//
// Error: Error conditions requiring attention
//   - API upstream unreachable (502 returned)
//   - Recovered handler panics
//   - Listener or shutdown failures
//
// Context Fields:
//   - component: fetch-engine, proxy, server
//   - request_id: X-Request-ID of the inbound request
//   - url: upstream URL (also the cache key)
//   - status: HTTP status code
//   - stage: image fallback stage (primary, secondary, cdn)
//   - error_class: network, timeout, cancelled
//   - etag: validator of the cached entry
//   - ttl: remaining or configured entry TTL

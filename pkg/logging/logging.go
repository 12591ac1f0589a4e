// Package logging builds the zerolog loggers used across dispatch.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config describes how a logger should be built.
type Config struct {
	// Level is a zerolog level name (trace, debug, info, warn, error). Empty means info.
	Level string

	// Format is "console" for human-readable output or "json". Empty means json.
	Format string

	// Output receives log lines. Nil means os.Stderr.
	Output io.Writer
}

// New returns a logger configured by cfg. An unparseable level falls back to
// info and is itself logged as a warning on the returned logger.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := ParseLevel(cfg.Level)
	logContext := zerolog.New(out).With().Timestamp()
	if level <= zerolog.DebugLevel {
		logContext = logContext.Caller()
	}
	logger := logContext.Logger().Level(level)

	if err != nil {
		logger.Warn().Err(err).
			Str("logLevel", cfg.Level).
			Msg("Invalid log level provided. Defaulting to info level.")
	}
	return logger
}

// NewComponent returns a child of base tagged with a component field.
func NewComponent(base zerolog.Logger, component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}

// ConfigureGlobal installs the logger built from cfg as zerolog's global logger.
func ConfigureGlobal(cfg Config) zerolog.Logger {
	logger := New(cfg)
	zerolog.SetGlobalLevel(logger.GetLevel())
	log.Logger = logger
	zerolog.DefaultContextLogger = &log.Logger
	return logger
}

// ParseLevel converts a level name into a zerolog.Level. The empty string is info.
func ParseLevel(levelString string) (zerolog.Level, error) {
	if levelString == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(levelString))
	if err != nil {
		return zerolog.InfoLevel, err
	}
	if level == zerolog.NoLevel {
		return zerolog.InfoLevel, nil
	}
	return level, nil
}

// OrGlobal dereferences l, substituting zerolog's global logger for nil.
// Failure reports use it so that they are never silently discarded.
func OrGlobal(l *zerolog.Logger) zerolog.Logger {
	if l == nil {
		return log.Logger
	}
	return *l
}

// OrNop dereferences l, substituting a disabled logger for nil so that a
// zero-value component Config stays silent.
func OrNop(l *zerolog.Logger) zerolog.Logger {
	if l == nil {
		return zerolog.Nop()
	}
	return *l
}

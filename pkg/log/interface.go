// Package log provides the structured logging interface used across atomgo.
//
// Components never talk to a concrete backend. They receive a Logger (or fall
// back to GetLogger) and log with the standard attribute keys defined in
// attributes.go, so that a pipeline run can be followed stage by stage:
//
//	logger := log.GetLoggerWithName("automl").With(
//	    log.RunIDKey, runID,
//	)
//	logger.Info("Stage finished",
//	    log.StageKey, "impute",
//	    log.SamplesKey, 1000,
//	    log.FeaturesKey, 12,
//	)
//
// Two backends are provided: SlogLogger on top of log/slog (JSON, with
// cockroachdb stack traces added by ErrFmtHandler) and ZerologLogger on top of
// rs/zerolog (console output for the CLI). TestLogger captures entries in
// memory for assertions.

package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key/value pairs. Error treats a leading error value
// specially: it is logged under the "error" key so that backends can attach
// its stack trace.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	//
	// Example:
	//   logger.Error("Pipeline failed",
	//       err,
	//       log.StageKey, "fit",
	//   )
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider defines an interface for creating and configuring loggers.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger with a specific name/component identifier.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}

// splitError pulls a leading error value out of a field list.
func splitError(fields []any) (error, []any) {
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			return err, fields[1:]
		}
	}
	return nil, fields
}

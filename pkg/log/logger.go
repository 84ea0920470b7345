package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/atomgo/pkg/errors"
)

// Options controls how SetupLogger builds the process-wide logger.
type Options struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// Format is "json" (Cloud Logging compatible slog output) or "console"
	// (human readable zerolog output, used by the CLI).
	Format string
	// Writer defaults to os.Stdout.
	Writer io.Writer
}

// SetupLogger function setup logger.
// It installs the resulting logger as the default returned by GetLogger and
// routes library warnings through it.
func SetupLogger(opts Options) (Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	var logger Logger
	switch strings.ToLower(opts.Format) {
	case "", "json":
		handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource: true,
			Level:     slog.Level(level),
			// Replace attributes to convert to CloudLogging format.
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				switch attr.Key {
				case slog.LevelKey:
					attr = slog.Attr{Key: "severity", Value: attr.Value}
				case slog.MessageKey:
					attr = slog.Attr{Key: "message", Value: attr.Value}
				case slog.SourceKey:
					attr = slog.Attr{Key: "logging.googleapis.com/sourceLocation", Value: attr.Value}
				}
				return attr
			},
		})
		sl := slog.New(WrapByErrFmtHandler(handler))
		slog.SetDefault(sl)
		logger = NewSlogLogger(sl)
	case "console":
		zl := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).
			Level(toZerologLevel(level)).
			With().Timestamp().Logger()
		logger = NewZerologLogger(zl)
	default:
		return nil, errors.NewValidationError("log.format", "must be json or console", opts.Format)
	}

	SetLogger(logger)
	errors.SetWarningHandler(func(w error) {
		logger.Warn(w.Error(), ErrorTypeKey, fmt.Sprintf("%T", w))
	})
	return logger, nil
}

// ParseLevel converts a level name into a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "info", "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewValidationError("log.level", "must be one of debug, info, warn, error", level)
	}
}

func toZerologLevel(l Level) zerolog.Level {
	switch {
	case l <= LevelDebug:
		return zerolog.DebugLevel
	case l <= LevelInfo:
		return zerolog.InfoLevel
	case l <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

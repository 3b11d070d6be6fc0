// Package logger is the runtime's structured logging surface: a thin layer
// over log/slog exposing package-level helpers so pipeline code logs
// without threading a logger through every constructor.
//
// The initial level comes from the LOG_LEVEL environment variable;
// SetVerbose and SetLevel reconfigure it at startup.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// DefaultLogger is the process-wide logger behind the package helpers.
// Safe for concurrent use.
var DefaultLogger *slog.Logger

func init() {
	DefaultLogger = slog.New(newHandler(parseLevel(os.Getenv("LOG_LEVEL"))))
}

// parseLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(level slog.Level) slog.Handler {
	return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
}

// SetLevel replaces the process-wide logger with one at the given level.
// Intended for startup; concurrent log calls see either logger.
func SetLevel(level slog.Level) {
	DefaultLogger = slog.New(newHandler(level))
}

// SetVerbose switches between debug and info level, for -v style flags.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// Info logs at info level. Args are alternating key/value pairs.
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// InfoContext is Info carrying a context.
func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

// Debug logs at debug level; emitted only when debug logging is enabled.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// DebugContext is Debug carrying a context.
func DebugContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.DebugContext(ctx, msg, args...)
}

// Warn logs at warn level, for recoverable or unexpected conditions.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// WarnContext is Warn carrying a context.
func WarnContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.WarnContext(ctx, msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}

// ErrorContext is Error carrying a context.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.ErrorContext(ctx, msg, args...)
}

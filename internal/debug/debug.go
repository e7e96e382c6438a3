// Package debug carries the --debug flag through the context and builds the
// logger handed to the 4me client.
package debug

import (
	"context"
	"io"
	"log/slog"
)

type contextKey string

const debugKey contextKey = "debug_enabled"

// WithDebug returns a context with debug mode enabled/disabled.
func WithDebug(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, debugKey, enabled)
}

// IsEnabled returns true if debug mode is enabled in the context.
func IsEnabled(ctx context.Context) bool {
	if v, ok := ctx.Value(debugKey).(bool); ok {
		return v
	}
	return false
}

// Level is debug with --debug, warn with --quiet and info otherwise, so the
// progress of imports and exports is visible by default.
func Level(debugEnabled, quiet bool) slog.Level {
	switch {
	case debugEnabled:
		return slog.LevelDebug
	case quiet:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// SetupLogger writes text logs to w at Level and installs the logger as the
// slog default.
func SetupLogger(w io.Writer, debugEnabled, quiet bool) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: Level(debugEnabled, quiet),
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

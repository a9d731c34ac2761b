package logger

import (
	"context"
	"log/slog"
)

// Current returns the global logger, or slog.Default before InitLogger runs.
func Current() *slog.Logger {
	if Logger != nil {
		return Logger
	}
	return slog.Default()
}

// SafeDebugContext logs at debug level whether or not InitLogger has run.
func SafeDebugContext(ctx context.Context, msg string, args ...any) {
	Current().DebugContext(ctx, msg, args...)
}

func SafeInfoContext(ctx context.Context, msg string, args ...any) {
	Current().InfoContext(ctx, msg, args...)
}

func SafeWarnContext(ctx context.Context, msg string, args ...any) {
	Current().WarnContext(ctx, msg, args...)
}

func SafeErrorContext(ctx context.Context, msg string, args ...any) {
	Current().ErrorContext(ctx, msg, args...)
}

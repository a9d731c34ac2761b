package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var Logger *slog.Logger

// InitLogger installs the global logger. format is "json" or "text"; when
// enableOTel is set records are also exported through the global OTel
// logger provider.
func InitLogger(level, format string, enableOTel bool) *slog.Logger {
	return initLogger(os.Stdout, level, format, enableOTel)
}

func initLogger(w io.Writer, level, format string, enableOTel bool) *slog.Logger {
	lvl := ParseLevel(level)

	var handler slog.Handler
	if enableOTel {
		handler = NewMultiHandler(w, lvl, format)
	} else {
		handler = NewMultiHandlerStdoutOnly(w, lvl, format)
	}

	Logger = slog.New(NewTraceContextHandler(handler))
	slog.SetDefault(Logger)

	Logger.Info("Logger initialized", "level", lvl.String(), "format", format, "otel", enableOTel)

	return Logger
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

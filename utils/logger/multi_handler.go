package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const otelScopeName = "imgproxy"

// MultiHandler sends logs to multiple handlers
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler creates a handler that writes to w and to OTel
func NewMultiHandler(w io.Writer, level slog.Level, format string) *MultiHandler {
	return &MultiHandler{
		handlers: []slog.Handler{
			newStreamHandler(w, level, format),
			// The bridge has no level option of its own.
			&levelFilter{level: level, inner: otelslog.NewHandler(otelScopeName)},
		},
	}
}

// NewMultiHandlerStdoutOnly creates a handler that writes only to w (OTel disabled)
func NewMultiHandlerStdoutOnly(w io.Writer, level slog.Level, format string) *MultiHandler {
	return &MultiHandler{
		handlers: []slog.Handler{
			newStreamHandler(w, level, format),
		},
	}
}

func newStreamHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			_ = handler.Handle(ctx, r.Clone())
		}
	}
	return nil
}

func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		newHandlers[i] = handler.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: newHandlers}
}

func (h *MultiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		newHandlers[i] = handler.WithGroup(name)
	}
	return &MultiHandler{handlers: newHandlers}
}

type levelFilter struct {
	level slog.Level
	inner slog.Handler
}

func (f *levelFilter) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= f.level && f.inner.Enabled(ctx, level)
}

func (f *levelFilter) Handle(ctx context.Context, r slog.Record) error {
	return f.inner.Handle(ctx, r)
}

func (f *levelFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelFilter{level: f.level, inner: f.inner.WithAttrs(attrs)}
}

func (f *levelFilter) WithGroup(name string) slog.Handler {
	return &levelFilter{level: f.level, inner: f.inner.WithGroup(name)}
}

package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
)

// LoggingMiddleware logs the start and completion of every request except
// health and metrics probes.
func LoggingMiddleware(baseLogger *slog.Logger) echo.MiddlewareFunc {
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			if req.URL.Path == "/health" || req.URL.Path == "/metrics" {
				return next(c)
			}
			ctx := req.Context()

			baseLogger.DebugContext(ctx, "request started",
				"method", req.Method,
				"path", req.URL.Path,
				"remote_addr", c.RealIP(),
				"user_agent", req.UserAgent(),
			)

			err := next(c)
			duration := time.Since(start)

			res := c.Response()
			status := res.Status
			logAttrs := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"status", status,
				"duration_ms", duration.Milliseconds(),
				"response_size", res.Size,
				"cache", res.Header().Get("X-Cache"),
			}
			if status >= 500 {
				baseLogger.ErrorContext(ctx, "request completed", logAttrs...)
			} else if status >= 400 {
				baseLogger.WarnContext(ctx, "request completed", logAttrs...)
			} else {
				baseLogger.InfoContext(ctx, "request completed", logAttrs...)
			}

			if err != nil {
				baseLogger.ErrorContext(ctx, "request error",
					"method", req.Method,
					"path", req.URL.Path,
					"error", err,
					"duration_ms", duration.Milliseconds(),
				)
			}

			return err
		}
	}
}

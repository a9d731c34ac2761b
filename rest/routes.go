package rest

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"imgproxy/config"
	"imgproxy/di"
	middleware_custom "imgproxy/middleware"
	"imgproxy/utils/errors"
	"imgproxy/utils/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

// ProxyPath is where the image proxy is mounted.
const ProxyPath = "/api/proxy"

func RegisterRoutes(e *echo.Echo, container *di.ApplicationComponents, cfg *config.Config) {
	e.HTTPErrorHandler = jsonErrorHandler

	// 1. Request ID first so every log line carries it
	e.Use(middleware_custom.RequestIDMiddleware())

	// 2. Recovery early
	e.Use(middleware.Recover())

	// 3. Tracing
	e.Use(otelecho.Middleware(cfg.OTel.ServiceName, otelecho.WithSkipper(func(c echo.Context) bool {
		return c.Path() == "/health" || c.Path() == "/metrics"
	})))

	// 4. Request deadline. A shared fetch is cancelled once all its waiters are gone.
	e.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
		Timeout: cfg.Server.RequestTimeout,
	}))

	// 5. Logging
	e.Use(middleware_custom.LoggingMiddleware(logger.Logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	handler := NewImageProxyHandler(container.ImageProxyUsecase, logger.Logger)
	e.Any(ProxyPath, handler.Handle)
}

// jsonErrorHandler renders router-level failures (unknown route, panics
// recovered by echo) as {"error": ...}.
func jsonErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"

	var httpErr *echo.HTTPError
	if stderrors.As(err, &httpErr) {
		status = httpErr.Code
		if status == http.StatusNotFound {
			message = "Not found"
		} else if m, ok := httpErr.Message.(string); ok {
			message = m
		} else {
			message = fmt.Sprint(httpErr.Message)
		}
	} else if appErr, ok := errors.AsAppContextError(err); ok {
		status = appErr.HTTPStatusCode()
		message = appErr.Message
	}

	if status >= http.StatusInternalServerError {
		errors.LogError(c.Request().Context(), logger.Current(), err, "http")
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, map[string]string{"error": message})
	}
	if writeErr != nil {
		logger.SafeErrorContext(c.Request().Context(), "failed to write error response", "error", writeErr)
	}
}

package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"imgproxy/domain"
	"imgproxy/usecase/image_proxy_usecase"
	"imgproxy/utils/errors"
	"imgproxy/utils/metrics"

	"github.com/labstack/echo/v4"
)

const (
	handlerLayer     = "rest"
	handlerComponent = "ImageProxyHandler"

	unknownClientID = "unknown"
)

// ImageProxyUsecase is the part of the usecase the handler depends on.
type ImageProxyUsecase interface {
	ProxyImage(ctx context.Context, req domain.ImageProxyRequest) (*domain.ImageProxyResult, error)
}

// ImageProxyHandler turns a ProxyRequest into a ProxyResponse. It never
// returns an error: every failure becomes a JSON error body.
type ImageProxyHandler struct {
	usecase ImageProxyUsecase
	logger  *slog.Logger
}

func NewImageProxyHandler(usecase ImageProxyUsecase, logger *slog.Logger) *ImageProxyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageProxyHandler{usecase: usecase, logger: logger}
}

// Serve handles one proxy request.
func (h *ImageProxyHandler) Serve(ctx context.Context, req *domain.ProxyRequest) (resp *domain.ProxyResponse) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.ErrorContext(ctx, "panic in image proxy handler", "panic", fmt.Sprint(r))
			resp = errorResponse(http.StatusInternalServerError, "Internal server error")
		}
		metrics.RecordRequest(resp.Status)
	}()

	switch req.Method {
	case http.MethodOptions:
		return newResponse(http.StatusOK)
	case http.MethodGet:
	default:
		err := errors.NewMethodNotAllowedError(req.Method, handlerLayer, handlerComponent, "Serve")
		errors.LogError(ctx, h.logger, err, "Serve")
		return errorResponse(err.HTTPStatusCode(), err.Message)
	}

	params, err := domain.ParseTransformParams(req.Query)
	if err != nil {
		appErr := errors.NewValidationError("Invalid transform parameters", handlerLayer, handlerComponent, "parse_params", map[string]interface{}{
			"reason": err.Error(),
		})
		errors.LogError(ctx, h.logger, appErr, "Serve")
		return errorResponse(appErr.HTTPStatusCode(), appErr.Message)
	}

	result, err := h.usecase.ProxyImage(ctx, domain.ImageProxyRequest{
		SourceURL: req.Query.Get("url"),
		Params:    params,
		ClientID:  clientID(req),
	})
	if err != nil {
		errors.LogError(ctx, h.logger, err, "ProxyImage")
		return h.failureResponse(err)
	}

	etag := `"` + result.ETag + `"`
	if result.ETag != "" && etagMatches(req.Header.Get("If-None-Match"), etag) {
		notModified := newResponse(http.StatusNotModified)
		setImageHeaders(notModified.Header, result, etag)
		notModified.Header.Del("Content-Type")
		return notModified
	}

	resp = newResponse(http.StatusOK)
	setImageHeaders(resp.Header, result, etag)
	resp.Body = result.Data
	return resp
}

// Handle adapts Serve to echo.
func (h *ImageProxyHandler) Handle(c echo.Context) error {
	req := c.Request()
	resp := h.Serve(req.Context(), &domain.ProxyRequest{
		Method:     req.Method,
		Header:     req.Header,
		Query:      c.QueryParams(),
		ClientAddr: req.RemoteAddr,
	})

	header := c.Response().Header()
	for k, vs := range resp.Header {
		for _, v := range vs {
			header.Add(k, v)
		}
	}
	if len(resp.Body) == 0 {
		return c.NoContent(resp.Status)
	}
	return c.Blob(resp.Status, resp.Header.Get(echo.HeaderContentType), resp.Body)
}

func (h *ImageProxyHandler) failureResponse(err error) *domain.ProxyResponse {
	appErr, ok := errors.AsAppContextError(err)
	if !ok {
		return errorResponse(http.StatusInternalServerError, "Internal server error")
	}

	status := appErr.HTTPStatusCode()
	var message string
	switch appErr.Code {
	case errors.CodeExternalAPI:
		message = "Failed to fetch image"
	case errors.CodeImageProcessing:
		message = "Failed to process image"
	case errors.CodeTimeout:
		message = "Upstream request timed out"
	case errors.CodeUnknown:
		message = "Internal server error"
	default:
		message = appErr.Message
	}

	resp := errorResponse(status, message)
	if status == http.StatusTooManyRequests {
		seconds, _ := appErr.Context[image_proxy_usecase.RetryAfterContextKey].(int)
		if seconds < 1 {
			seconds = 1
		}
		resp.Header.Set("Retry-After", strconv.Itoa(seconds))
	}
	return resp
}

func newResponse(status int) *domain.ProxyResponse {
	header := make(http.Header)
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	header.Set("Access-Control-Allow-Headers", "Content-Type")
	return &domain.ProxyResponse{Status: status, Header: header}
}

func errorResponse(status int, message string) *domain.ProxyResponse {
	resp := newResponse(status)
	resp.Header.Set("Content-Type", "application/json")
	body, _ := json.Marshal(map[string]string{"error": message})
	resp.Body = body
	return resp
}

func setImageHeaders(header http.Header, result *domain.ImageProxyResult, etag string) {
	header.Set("Content-Type", result.ContentType)
	header.Set("Cache-Control", domain.ImageProxyCacheControl)
	header.Set("X-Cache", string(result.CacheStatus))
	header.Set("Cross-Origin-Resource-Policy", "cross-origin")
	if result.ETag != "" {
		header.Set("ETag", etag)
	}
}

// clientID prefers the first X-Forwarded-For hop and falls back to the
// host part of the connection address.
func clientID(req *domain.ProxyRequest) string {
	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if req.ClientAddr == "" {
		return unknownClientID
	}
	if host, _, err := net.SplitHostPort(req.ClientAddr); err == nil {
		return host
	}
	return req.ClientAddr
}

func etagMatches(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

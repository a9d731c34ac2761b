package image_fetch_gateway

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"imgproxy/domain"
	"imgproxy/utils/errors"
	"imgproxy/utils/logger"
	"imgproxy/utils/metrics"
	"imgproxy/utils/rate_limiter"
)

const (
	fetchLayer     = "gateway"
	fetchComponent = "ImageFetchGateway"

	userAgent = "imgproxy/1.0"
)

// ImageFetchGateway implements the ImageFetchPort interface.
// It acts as an Anti-Corruption Layer between the domain and upstream image hosts.
type ImageFetchGateway struct {
	httpClient  *http.Client
	hostLimiter *rate_limiter.HostRateLimiter
}

// NewImageFetchGateway creates a new ImageFetchGateway. Redirects are only
// followed to the original hostname, at most maxRedirects times. hostLimiter
// may be nil.
func NewImageFetchGateway(timeout time.Duration, maxRedirects int, hostLimiter *rate_limiter.HostRateLimiter) *ImageFetchGateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &http.Client{
		Timeout:       timeout,
		CheckRedirect: sameHostRedirectPolicy(maxRedirects),
	}

	return &ImageFetchGateway{
		httpClient:  client,
		hostLimiter: hostLimiter,
	}
}

func sameHostRedirectPolicy(maxRedirects int) func(req *http.Request, via []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) > maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		if !strings.EqualFold(req.URL.Hostname(), via[0].URL.Hostname()) {
			return fmt.Errorf("redirect to different host not allowed: %s", req.URL.Hostname())
		}
		return nil
	}
}

// FetchImage fetches an image from the upstream host.
func (g *ImageFetchGateway) FetchImage(ctx context.Context, imageURL *url.URL, options *domain.ImageFetchOptions) (*domain.ImageFetchResult, error) {
	if options == nil {
		options = domain.NewImageFetchOptions()
	}

	start := time.Now()
	result, err := g.fetch(ctx, imageURL, options)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RecordUpstreamFetch(outcome, time.Since(start).Seconds())
	return result, err
}

func (g *ImageFetchGateway) fetch(ctx context.Context, imageURL *url.URL, options *domain.ImageFetchOptions) (*domain.ImageFetchResult, error) {
	urlStr := imageURL.String()
	errCtx := map[string]interface{}{"url": urlStr}

	if g.hostLimiter != nil {
		if err := g.hostLimiter.WaitForHost(ctx, urlStr); err != nil {
			return nil, g.classify("upstream rate limit wait aborted", "wait_for_host", err, errCtx)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, errors.NewExternalServiceUnavailableError("failed to create HTTP request", fetchLayer, fetchComponent, "create_request", err, errCtx)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/webp, image/jpeg, image/png")

	logger.SafeDebugContext(ctx, "Fetching upstream image", "url", urlStr)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, g.classify("HTTP request failed", "http_request", err, errCtx)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.NewExternalServiceUnavailableError(
			fmt.Sprintf("HTTP request failed with status %d", resp.StatusCode),
			fetchLayer,
			fetchComponent,
			"http_response",
			fmt.Errorf("status code: %d", resp.StatusCode),
			map[string]interface{}{
				"url":         urlStr,
				"status_code": resp.StatusCode,
			},
		)
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n > int64(options.MaxSize) {
			return nil, g.tooLarge(urlStr, n, options.MaxSize)
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, int64(options.MaxSize)+1))
	if err != nil {
		return nil, g.classify("failed to read response body", "read_response", err, errCtx)
	}
	if len(data) > options.MaxSize {
		return nil, g.tooLarge(urlStr, int64(len(data)), options.MaxSize)
	}

	return &domain.ImageFetchResult{
		URL:         urlStr,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
		Size:        len(data),
		FetchedAt:   time.Now(),
	}, nil
}

func (g *ImageFetchGateway) classify(message, operation string, err error, errCtx map[string]interface{}) error {
	if isTimeout(err) {
		return errors.NewOperationTimeoutError("upstream request timeout", fetchLayer, fetchComponent, operation, err, errCtx)
	}
	return errors.NewExternalServiceUnavailableError(message, fetchLayer, fetchComponent, operation, err, errCtx)
}

func (g *ImageFetchGateway) tooLarge(urlStr string, size int64, maxSize int) error {
	return errors.NewExternalServiceUnavailableError(
		"image too large",
		fetchLayer,
		fetchComponent,
		"validate_size",
		fmt.Errorf("size %d exceeds limit %d", size, maxSize),
		map[string]interface{}{
			"url":      urlStr,
			"size":     size,
			"max_size": maxSize,
		},
	)
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

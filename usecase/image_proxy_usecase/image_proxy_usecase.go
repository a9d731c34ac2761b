package image_proxy_usecase

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"

	"imgproxy/domain"
	image_fetch_port "imgproxy/port/image_fetch_port"
	"imgproxy/port/image_proxy_port"
	"imgproxy/utils/errors"
	"imgproxy/utils/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const (
	usecaseLayer     = "usecase"
	usecaseComponent = "ImageProxyUsecase"

	// RetryAfterContextKey carries the Retry-After seconds on rate limit errors.
	RetryAfterContextKey = "retry_after_seconds"

	defaultFlightTimeout = 60 * time.Second
)

// ImageProxyUsecase orchestrates image proxy operations.
type ImageProxyUsecase struct {
	imageFetchPort image_fetch_port.ImageFetchPort
	processing     image_proxy_port.ImageProcessingPort
	cache          image_proxy_port.ImageProxyCachePort
	allowlist      image_proxy_port.DomainAllowlistPort
	rateLimiter    image_proxy_port.ClientRateLimiterPort
	fetchOptions   *domain.ImageFetchOptions
	cacheTTL       time.Duration
	now            func() time.Time
	tracer         trace.Tracer
	flightTimeout  time.Duration

	// flights collapses concurrent misses for the same cache key.
	flights singleflight.Group

	mu       sync.Mutex
	inflight map[string]*flight
}

// flight is the context shared by every caller waiting on one cache key.
// It is cancelled when the last waiter leaves.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewImageProxyUsecase creates a new ImageProxyUsecase.
func NewImageProxyUsecase(
	imageFetchPort image_fetch_port.ImageFetchPort,
	processing image_proxy_port.ImageProcessingPort,
	cache image_proxy_port.ImageProxyCachePort,
	allowlist image_proxy_port.DomainAllowlistPort,
	rateLimiter image_proxy_port.ClientRateLimiterPort,
	maxSourceBytes int,
	cacheTTL time.Duration,
) *ImageProxyUsecase {
	if cacheTTL <= 0 {
		cacheTTL = domain.ImageProxyCacheTTL
	}
	fetchOptions := domain.NewImageFetchOptions()
	if maxSourceBytes > 0 {
		fetchOptions.MaxSize = maxSourceBytes
	}
	return &ImageProxyUsecase{
		imageFetchPort: imageFetchPort,
		processing:     processing,
		cache:          cache,
		allowlist:      allowlist,
		rateLimiter:    rateLimiter,
		fetchOptions:   fetchOptions,
		cacheTTL:       cacheTTL,
		now:            time.Now,
		tracer:         otel.Tracer("imgproxy/usecase/image_proxy"),
		flightTimeout:  defaultFlightTimeout,
		inflight:       make(map[string]*flight),
	}
}

// WithClock replaces time.Now for rate limiting and cache expiry.
func (u *ImageProxyUsecase) WithClock(now func() time.Time) *ImageProxyUsecase {
	u.now = now
	return u
}

// WithFlightTimeout bounds a single fetch+transform+store run.
func (u *ImageProxyUsecase) WithFlightTimeout(d time.Duration) *ImageProxyUsecase {
	if d > 0 {
		u.flightTimeout = d
	}
	return u
}

// ProxyImage validates the request, charges the client's rate budget and
// serves the transformed image from cache or from a fresh fetch+transform.
func (u *ImageProxyUsecase) ProxyImage(ctx context.Context, req domain.ImageProxyRequest) (*domain.ImageProxyResult, error) {
	ctx, span := u.tracer.Start(ctx, "ImageProxyUsecase.ProxyImage")
	defer span.End()

	result, err := u.proxyImage(ctx, req, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("imgproxy.cache", string(result.CacheStatus)),
		attribute.String("imgproxy.output_format", string(result.OutputFormat)),
		attribute.Int("imgproxy.size_bytes", result.SizeBytes),
	)
	return result, nil
}

func (u *ImageProxyUsecase) proxyImage(ctx context.Context, req domain.ImageProxyRequest, span trace.Span) (*domain.ImageProxyResult, error) {
	// 1. Validate
	sourceURL, err := u.validate(ctx, req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("imgproxy.source_host", sourceURL.Hostname()))

	// 2. Rate check; rejected requests are not recorded
	now := u.now()
	if !u.rateLimiter.Admit(req.ClientID, now) {
		retryAfter := u.rateLimiter.RetryAfter(req.ClientID, now)
		return nil, errors.NewRateLimitExceededError(usecaseLayer, usecaseComponent, "rate_check", map[string]interface{}{
			"client_id":          req.ClientID,
			RetryAfterContextKey: int(math.Ceil(retryAfter.Seconds())),
		})
	}

	// 3. Cache lookup
	key := domain.BuildCacheKey(req.SourceURL, req.Params)
	cached, err := u.cache.GetCachedImage(ctx, key)
	if err != nil {
		logger.SafeErrorContext(ctx, "cache lookup failed", "error", err, "key", key)
	}
	if cached != nil && !cached.IsExpired(u.now()) {
		return resultFromEntry(cached, domain.CacheHit), nil
	}

	// 4. Fetch, transform and store, once per key
	flightCtx, leave := u.joinFlight(ctx, key)
	defer leave()
	ch := u.flights.DoChan(key, func() (val interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.SafeErrorContext(flightCtx, "panic while producing image", "panic", fmt.Sprint(r), "url", req.SourceURL)
				val, err = nil, errors.NewAppContextError(errors.CodeUnknown, "image pipeline panicked", usecaseLayer, usecaseComponent, "fetch_transform_store", fmt.Errorf("panic: %v", r), map[string]interface{}{
					"url": req.SourceURL,
				})
			}
		}()
		return u.fetchTransformStore(flightCtx, sourceURL, req, key)
	})

	select {
	case <-ctx.Done():
		return nil, errors.NewOperationTimeoutError("request cancelled while waiting for image", usecaseLayer, usecaseComponent, "await_flight", ctx.Err(), map[string]interface{}{
			"url": req.SourceURL,
		})
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		entry := res.Val.(*domain.ImageProxyCacheEntry)
		return resultFromEntry(entry, domain.CacheMiss), nil
	}
}

func (u *ImageProxyUsecase) validate(ctx context.Context, req domain.ImageProxyRequest) (*url.URL, error) {
	if strings.TrimSpace(req.SourceURL) == "" {
		return nil, errors.NewValidationError("Missing url parameter", usecaseLayer, usecaseComponent, "validate", nil)
	}

	sourceURL, err := domain.ValidateImageURL(req.SourceURL)
	if err != nil {
		return nil, errors.NewValidationError("Invalid url parameter", usecaseLayer, usecaseComponent, "validate", map[string]interface{}{
			"url":    req.SourceURL,
			"reason": err.Error(),
		})
	}

	allowed, err := u.allowlist.IsAllowedImageDomain(ctx, sourceURL.Hostname())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil || stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			if ctxErr == nil {
				ctxErr = err
			}
			return nil, errors.NewOperationTimeoutError("request cancelled during domain check", usecaseLayer, usecaseComponent, "validate", ctxErr, nil)
		}
		return nil, errors.NewAppContextError(errors.CodeUnknown, "domain check failed", usecaseLayer, usecaseComponent, "validate", err, nil)
	}
	if !allowed {
		return nil, errors.NewDomainNotAllowedError(usecaseLayer, usecaseComponent, "validate", map[string]interface{}{
			"host": sourceURL.Hostname(),
		})
	}

	return sourceURL, nil
}

func (u *ImageProxyUsecase) fetchTransformStore(ctx context.Context, sourceURL *url.URL, req domain.ImageProxyRequest, key string) (*domain.ImageProxyCacheEntry, error) {
	ctx, span := u.tracer.Start(ctx, "ImageProxyUsecase.fetchTransformStore")
	defer span.End()

	start := u.now()

	fetched, err := u.imageFetchPort.FetchImage(ctx, sourceURL, u.fetchOptions)
	if err != nil {
		if _, ok := errors.AsAppContextError(err); !ok {
			err = errors.NewExternalServiceUnavailableError("Failed to fetch image", usecaseLayer, usecaseComponent, "fetch", err, map[string]interface{}{
				"url": req.SourceURL,
			})
		}
		span.RecordError(err)
		return nil, err
	}

	processed, err := u.processing.ProcessImage(ctx, fetched.Data, req.Params)
	if err != nil {
		if !errors.IsImageProcessingError(err) {
			err = errors.NewImageProcessingError("Failed to process image", usecaseLayer, usecaseComponent, "transform", err, map[string]interface{}{
				"url": req.SourceURL,
			})
		}
		span.RecordError(err)
		return nil, err
	}

	createdAt := u.now()
	entry := &domain.ImageProxyCacheEntry{
		Key:            key,
		OriginalURL:    req.SourceURL,
		Data:           processed.Data,
		ContentType:    processed.ContentType,
		OriginalFormat: processed.OriginalFormat,
		OutputFormat:   processed.OutputFormat,
		Width:          processed.Width,
		Height:         processed.Height,
		SizeBytes:      processed.SizeBytes,
		ETag:           processed.ETag,
		CreatedAt:      createdAt,
		ExpiresAt:      createdAt.Add(u.cacheTTL),
	}

	// Caching is best effort; the response is served either way.
	if err := u.cache.SaveCachedImage(ctx, entry); err != nil {
		logger.SafeErrorContext(ctx, "failed to cache image", "error", err, "key", key)
	}

	logger.SafeInfoContext(ctx, "image transformed",
		"url", req.SourceURL,
		"original_format", processed.OriginalFormat,
		"output_format", processed.OutputFormat,
		"width", processed.Width,
		"height", processed.Height,
		"source_bytes", fetched.Size,
		"output_bytes", processed.SizeBytes,
		"duration_ms", createdAt.Sub(start).Milliseconds(),
	)

	return entry, nil
}

// joinFlight registers the caller as a waiter on key and returns the context
// the shared work runs under. The context outlives any single caller but is
// bounded by flightTimeout, and is cancelled once every waiter has left.
func (u *ImageProxyUsecase) joinFlight(ctx context.Context, key string) (context.Context, func()) {
	u.mu.Lock()
	defer u.mu.Unlock()

	f, ok := u.inflight[key]
	if !ok {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.flightTimeout)
		f = &flight{ctx: flightCtx, cancel: cancel}
		u.inflight[key] = f
	}
	f.waiters++

	var once sync.Once
	return f.ctx, func() {
		once.Do(func() {
			u.mu.Lock()
			defer u.mu.Unlock()
			f.waiters--
			if f.waiters > 0 {
				return
			}
			f.cancel()
			if u.inflight[key] == f {
				delete(u.inflight, key)
			}
			// An abandoned run may still be unwinding; later callers start fresh.
			u.flights.Forget(key)
		})
	}
}

// CleanupExpiredImages removes expired cache entries.
func (u *ImageProxyUsecase) CleanupExpiredImages(ctx context.Context) (int64, error) {
	return u.cache.CleanupExpiredImages(ctx)
}

func resultFromEntry(entry *domain.ImageProxyCacheEntry, status domain.CacheStatus) *domain.ImageProxyResult {
	return &domain.ImageProxyResult{
		Data:           entry.Data,
		ContentType:    entry.ContentType,
		OriginalFormat: entry.OriginalFormat,
		OutputFormat:   entry.OutputFormat,
		Width:          entry.Width,
		Height:         entry.Height,
		SizeBytes:      entry.SizeBytes,
		ETag:           entry.ETag,
		CacheStatus:    status,
		ExpiresAt:      entry.ExpiresAt,
	}
}

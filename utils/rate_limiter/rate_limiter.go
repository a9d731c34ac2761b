package rate_limiter

import (
	"context"
	"errors"
	"net/url"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// HostRateLimiter paces outbound requests per upstream host. The set of
// tracked hosts is bounded; the least recently used host is dropped first.
type HostRateLimiter struct {
	limiters *lru.Cache[string, *rate.Limiter]
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
}

func NewHostRateLimiter(requestsPerSecond float64, burst, maxHosts int) (*HostRateLimiter, error) {
	if burst < 1 {
		burst = 1
	}
	cache, err := lru.New[string, *rate.Limiter](maxHosts)
	if err != nil {
		return nil, err
	}
	return &HostRateLimiter{
		limiters: cache,
		limit:    rate.Limit(requestsPerSecond),
		burst:    burst,
	}, nil
}

func (h *HostRateLimiter) WaitForHost(ctx context.Context, urlStr string) error {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return err
	}

	host := parsedURL.Host
	if host == "" {
		return &url.Error{Op: "parse", URL: urlStr, Err: errors.New("missing host in URL")}
	}

	limiter := h.getLimiterForHost(host)

	return limiter.Wait(ctx)
}

func (h *HostRateLimiter) getLimiterForHost(host string) *rate.Limiter {
	if limiter, ok := h.limiters.Get(host); ok {
		return limiter
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Double-check pattern
	if limiter, ok := h.limiters.Get(host); ok {
		return limiter
	}

	limiter := rate.NewLimiter(h.limit, h.burst)
	h.limiters.Add(host, limiter)
	return limiter
}

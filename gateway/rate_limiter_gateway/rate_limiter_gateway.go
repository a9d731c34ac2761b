package rate_limiter_gateway

import (
	"time"

	"imgproxy/utils/metrics"
	"imgproxy/utils/rate_limiter"
)

// RateLimiterGateway implements the ClientRateLimiterPort interface
type RateLimiterGateway struct {
	clientLimiter *rate_limiter.SlidingWindowLimiter
}

// NewRateLimiterGateway creates a new rate limiter gateway
func NewRateLimiterGateway(clientLimiter *rate_limiter.SlidingWindowLimiter) *RateLimiterGateway {
	return &RateLimiterGateway{
		clientLimiter: clientLimiter,
	}
}

// Admit records a request for clientID at now and reports whether it is allowed.
func (r *RateLimiterGateway) Admit(clientID string, now time.Time) bool {
	if r.clientLimiter.Admit(clientID, now) {
		return true
	}
	metrics.RecordRateLimited()
	return false
}

// RetryAfter returns how long clientID must wait before its next request is admitted.
func (r *RateLimiterGateway) RetryAfter(clientID string, now time.Time) time.Duration {
	return r.clientLimiter.RetryAfter(clientID, now)
}

// Prune drops clients whose windows have emptied and returns how many were dropped.
func (r *RateLimiterGateway) Prune(now time.Time) int {
	return r.clientLimiter.Prune(now)
}

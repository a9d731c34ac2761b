package rate_limiter_gateway

import (
	"testing"
	"time"

	"imgproxy/utils/metrics"
	"imgproxy/utils/rate_limiter"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterGateway_AdmitAndReject(t *testing.T) {
	gw := NewRateLimiterGateway(rate_limiter.NewSlidingWindowLimiter(time.Minute, 2))
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	before := testutil.ToFloat64(metrics.RateLimitedTotal)

	assert.True(t, gw.Admit("10.0.0.1", now))
	assert.True(t, gw.Admit("10.0.0.1", now.Add(time.Second)))
	assert.False(t, gw.Admit("10.0.0.1", now.Add(2*time.Second)))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RateLimitedTotal))

	assert.Equal(t, 58*time.Second, gw.RetryAfter("10.0.0.1", now.Add(2*time.Second)))
	assert.True(t, gw.Admit("10.0.0.1", now.Add(time.Minute+time.Millisecond)))
}

func TestRateLimiterGateway_Prune(t *testing.T) {
	gw := NewRateLimiterGateway(rate_limiter.NewSlidingWindowLimiter(time.Minute, 2))
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	gw.Admit("a", now)
	gw.Admit("b", now.Add(30*time.Second))

	assert.Equal(t, 1, gw.Prune(now.Add(time.Minute)))
	assert.Equal(t, 1, gw.Prune(now.Add(2*time.Minute)))
}

package job

import (
	"context"
	"time"

	"imgproxy/utils/logger"
)

// ExpiredImageCleaner removes expired cache entries.
type ExpiredImageCleaner interface {
	CleanupExpiredImages(ctx context.Context) (int64, error)
}

// ClientWindowPruner drops rate limiter state that has fully decayed.
type ClientWindowPruner interface {
	Prune(now time.Time) int
}

// CacheSweepJob reclaims expired image cache entries every interval.
func CacheSweepJob(cleaner ExpiredImageCleaner, interval time.Duration) Job {
	return Job{
		Name:     "image-cache-sweep",
		Interval: interval,
		Timeout:  interval,
		Fn: func(ctx context.Context) error {
			removed, err := cleaner.CleanupExpiredImages(ctx)
			if err != nil {
				return err
			}
			if removed > 0 {
				logger.SafeInfoContext(ctx, "expired images removed", "count", removed)
			}
			return nil
		},
	}
}

// RateLimiterPruneJob forgets clients whose request window is empty.
func RateLimiterPruneJob(pruner ClientWindowPruner, interval time.Duration, now func() time.Time) Job {
	if now == nil {
		now = time.Now
	}
	return Job{
		Name:     "client-rate-limiter-prune",
		Interval: interval,
		Timeout:  interval,
		Fn: func(ctx context.Context) error {
			if removed := pruner.Prune(now()); removed > 0 {
				logger.SafeDebugContext(ctx, "idle clients pruned", "count", removed)
			}
			return nil
		},
	}
}

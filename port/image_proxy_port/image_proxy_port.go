package image_proxy_port

import (
	"context"
	"imgproxy/domain"
	"time"
)

// ImageProxyCachePort defines the interface for caching transformed images.
type ImageProxyCachePort interface {
	GetCachedImage(ctx context.Context, key string) (*domain.ImageProxyCacheEntry, error)
	SaveCachedImage(ctx context.Context, entry *domain.ImageProxyCacheEntry) error
	CleanupExpiredImages(ctx context.Context) (int64, error)
}

// ImageProcessingPort defines the interface for image processing (resize + re-encode).
type ImageProcessingPort interface {
	ProcessImage(ctx context.Context, data []byte, params domain.TransformParams) (*domain.TransformResult, error)
}

// DomainAllowlistPort defines the interface for source domain allowlisting.
type DomainAllowlistPort interface {
	IsAllowedImageDomain(ctx context.Context, hostname string) (bool, error)
}

// ClientRateLimiterPort decides whether a client may issue another request.
type ClientRateLimiterPort interface {
	Admit(clientID string, now time.Time) bool
	RetryAfter(clientID string, now time.Time) time.Duration
}

package image_proxy_gateway

import (
	"context"

	"imgproxy/domain"
	"imgproxy/driver/image_cache_driver"
	"imgproxy/utils/metrics"
)

// CacheGateway implements ImageProxyCachePort on top of the in-memory store.
type CacheGateway struct {
	store *image_cache_driver.MemoryStore
}

// NewCacheGateway creates a new CacheGateway.
func NewCacheGateway(store *image_cache_driver.MemoryStore) *CacheGateway {
	return &CacheGateway{store: store}
}

// GetCachedImage returns the live entry for key, or nil on a miss.
func (g *CacheGateway) GetCachedImage(ctx context.Context, key string) (*domain.ImageProxyCacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, ok := g.store.Get(key)
	metrics.RecordCacheLookup(ok)
	if !ok {
		return nil, nil
	}
	return entry, nil
}

func (g *CacheGateway) SaveCachedImage(ctx context.Context, entry *domain.ImageProxyCacheEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.store.Set(entry)
	return nil
}

// CleanupExpiredImages sweeps expired entries and returns how many were removed.
func (g *CacheGateway) CleanupExpiredImages(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	removed := int64(g.store.Sweep())
	metrics.RecordSweep(removed, g.store.Len())
	return removed, nil
}

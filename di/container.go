package di

import (
	"fmt"

	"imgproxy/config"
	"imgproxy/driver/image_cache_driver"
	"imgproxy/gateway/image_fetch_gateway"
	"imgproxy/gateway/image_proxy_gateway"
	"imgproxy/gateway/rate_limiter_gateway"
	"imgproxy/job"
	"imgproxy/usecase/image_proxy_usecase"
	"imgproxy/utils/rate_limiter"
)

type ApplicationComponents struct {
	ImageProxyUsecase  *image_proxy_usecase.ImageProxyUsecase
	RateLimiterGateway *rate_limiter_gateway.RateLimiterGateway
	ImageCacheStore    *image_cache_driver.MemoryStore
	JobScheduler       *job.JobScheduler
}

func NewApplicationComponents(cfg *config.Config) (*ApplicationComponents, error) {
	// Upstream pacing, one token bucket per source host
	hostLimiter, err := rate_limiter.NewHostRateLimiter(cfg.RateLimit.UpstreamRPS, cfg.RateLimit.UpstreamBurst, cfg.RateLimit.UpstreamMaxHosts)
	if err != nil {
		return nil, fmt.Errorf("create upstream rate limiter: %w", err)
	}
	imageFetchGatewayImpl := image_fetch_gateway.NewImageFetchGateway(cfg.HTTP.ClientTimeout, cfg.HTTP.MaxRedirects, hostLimiter)

	imageCacheStore := image_cache_driver.NewMemoryStore(cfg.Cache.Shards)
	cacheGatewayImpl := image_proxy_gateway.NewCacheGateway(imageCacheStore)
	processingGatewayImpl := image_proxy_gateway.NewProcessingGateway(cfg.ImageProxy.DefaultQuality, cfg.ImageProxy.WebPEffort)
	allowlistGatewayImpl := image_proxy_gateway.NewDomainAllowlistGateway(cfg.ImageProxy.AllowedDomains)

	clientLimiter := rate_limiter.NewSlidingWindowLimiter(cfg.RateLimit.ClientWindow, cfg.RateLimit.ClientMaxRequests)
	rateLimiterGatewayImpl := rate_limiter_gateway.NewRateLimiterGateway(clientLimiter)

	imageProxyUsecase := image_proxy_usecase.NewImageProxyUsecase(
		imageFetchGatewayImpl,
		processingGatewayImpl,
		cacheGatewayImpl,
		allowlistGatewayImpl,
		rateLimiterGatewayImpl,
		cfg.ImageProxy.MaxSourceBytes,
		cfg.Cache.TTL,
	).WithFlightTimeout(cfg.Server.RequestTimeout)

	scheduler := job.NewJobScheduler()
	scheduler.Add(job.CacheSweepJob(imageProxyUsecase, cfg.Cache.SweepInterval))
	scheduler.Add(job.RateLimiterPruneJob(rateLimiterGatewayImpl, cfg.RateLimit.PruneInterval, nil))

	return &ApplicationComponents{
		ImageProxyUsecase:  imageProxyUsecase,
		RateLimiterGateway: rateLimiterGatewayImpl,
		ImageCacheStore:    imageCacheStore,
		JobScheduler:       scheduler,
	}, nil
}

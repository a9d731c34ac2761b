package config

import (
	"fmt"
	"strings"
)

// validateConfig validates the loaded configuration values
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}

	if err := validateImageProxyConfig(&config.ImageProxy); err != nil {
		return fmt.Errorf("image proxy config validation failed: %w", err)
	}

	if err := validateRateLimitConfig(&config.RateLimit); err != nil {
		return fmt.Errorf("rate limit config validation failed: %w", err)
	}

	if err := validateCacheConfig(&config.Cache); err != nil {
		return fmt.Errorf("cache config validation failed: %w", err)
	}

	if err := validateLoggingConfig(&config.Logging); err != nil {
		return fmt.Errorf("logging config validation failed: %w", err)
	}

	if err := validateHTTPConfig(&config.HTTP); err != nil {
		return fmt.Errorf("HTTP config validation failed: %w", err)
	}

	if err := validateOTelConfig(&config.OTel); err != nil {
		return fmt.Errorf("otel config validation failed: %w", err)
	}

	return nil
}

func validateServerConfig(config *ServerConfig) error {
	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", config.Port)
	}

	if config.ReadTimeout <= 0 || config.WriteTimeout <= 0 || config.IdleTimeout <= 0 {
		return fmt.Errorf("timeout values must be positive, got ReadTimeout: %v, WriteTimeout: %v, IdleTimeout: %v",
			config.ReadTimeout, config.WriteTimeout, config.IdleTimeout)
	}

	if config.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %v", config.RequestTimeout)
	}

	if config.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %v", config.ShutdownTimeout)
	}

	return nil
}

func validateImageProxyConfig(config *ImageProxyConfig) error {
	domains := config.AllowedDomains[:0]
	for _, d := range config.AllowedDomains {
		if d = strings.TrimSpace(d); d != "" {
			domains = append(domains, d)
		}
	}
	config.AllowedDomains = domains

	if len(config.AllowedDomains) == 0 {
		return fmt.Errorf("at least one allowed domain is required")
	}

	if config.DefaultQuality < 1 || config.DefaultQuality > 100 {
		return fmt.Errorf("default quality must be between 1 and 100, got %d", config.DefaultQuality)
	}

	if config.WebPEffort < 0 || config.WebPEffort > 6 {
		return fmt.Errorf("webp effort must be between 0 and 6, got %d", config.WebPEffort)
	}

	if config.MaxSourceBytes <= 0 {
		return fmt.Errorf("max source bytes must be positive, got %d", config.MaxSourceBytes)
	}

	return nil
}

func validateRateLimitConfig(config *RateLimitConfig) error {
	if config.ClientWindow <= 0 {
		return fmt.Errorf("client window must be positive, got %v", config.ClientWindow)
	}

	if config.ClientMaxRequests <= 0 {
		return fmt.Errorf("client max requests must be positive, got %d", config.ClientMaxRequests)
	}

	if config.PruneInterval <= 0 {
		return fmt.Errorf("prune interval must be positive, got %v", config.PruneInterval)
	}

	if config.UpstreamRPS <= 0 {
		return fmt.Errorf("upstream rps must be positive, got %v", config.UpstreamRPS)
	}

	if config.UpstreamBurst <= 0 {
		return fmt.Errorf("upstream burst must be positive, got %d", config.UpstreamBurst)
	}

	if config.UpstreamMaxHosts <= 0 {
		return fmt.Errorf("upstream max hosts must be positive, got %d", config.UpstreamMaxHosts)
	}

	return nil
}

func validateCacheConfig(config *CacheConfig) error {
	if config.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %v", config.TTL)
	}

	if config.SweepInterval <= 0 {
		return fmt.Errorf("cache sweep interval must be positive, got %v", config.SweepInterval)
	}

	if config.Shards <= 0 {
		return fmt.Errorf("cache shards must be positive, got %d", config.Shards)
	}

	return nil
}

func validateLoggingConfig(config *LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(config.Level)] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", config.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(config.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", config.Format)
	}

	return nil
}

func validateHTTPConfig(config *HTTPConfig) error {
	if config.ClientTimeout <= 0 {
		return fmt.Errorf("HTTP client timeout must be positive, got %v", config.ClientTimeout)
	}

	if config.MaxRedirects < 0 {
		return fmt.Errorf("max redirects cannot be negative, got %d", config.MaxRedirects)
	}

	return nil
}

func validateOTelConfig(config *OTelConfig) error {
	if !config.Enabled {
		return nil
	}

	if config.SampleRatio < 0 || config.SampleRatio > 1 {
		return fmt.Errorf("sample ratio must be between 0 and 1, got %v", config.SampleRatio)
	}

	if strings.TrimSpace(config.Endpoint) == "" {
		return fmt.Errorf("OTLP endpoint is required when OTel is enabled")
	}

	return nil
}

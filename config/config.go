package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server     ServerConfig     `json:"server"`
	ImageProxy ImageProxyConfig `json:"image_proxy"`
	RateLimit  RateLimitConfig  `json:"rate_limit"`
	Cache      CacheConfig      `json:"cache"`
	Logging    LoggingConfig    `json:"logging"`
	HTTP       HTTPConfig       `json:"http"`
	OTel       OTelConfig       `json:"otel"`
}

type ServerConfig struct {
	Port           int           `json:"port" env:"PORT" envDefault:"3000"`
	ReadTimeout    time.Duration `json:"read_timeout" env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout   time.Duration `json:"write_timeout" env:"SERVER_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout    time.Duration `json:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	RequestTimeout time.Duration `json:"request_timeout" env:"SERVER_REQUEST_TIMEOUT" envDefault:"45s"`
	// ShutdownTimeout bounds graceful shutdown after SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type ImageProxyConfig struct {
	AllowedDomains []string `json:"allowed_domains" env:"IMAGE_PROXY_ALLOWED_DOMAINS" envDefault:"artsco202525.speedgabia.com" envSeparator:","`
	DefaultQuality int      `json:"default_quality" env:"IMAGE_PROXY_DEFAULT_QUALITY" envDefault:"80"`
	WebPEffort     int      `json:"webp_effort" env:"IMAGE_PROXY_WEBP_EFFORT" envDefault:"4"`
	MaxSourceBytes int      `json:"max_source_bytes" env:"IMAGE_PROXY_MAX_SOURCE_BYTES" envDefault:"10485760"`
}

type RateLimitConfig struct {
	ClientWindow      time.Duration `json:"client_window" env:"RATE_LIMIT_CLIENT_WINDOW" envDefault:"60s"`
	ClientMaxRequests int           `json:"client_max_requests" env:"RATE_LIMIT_CLIENT_MAX_REQUESTS" envDefault:"15"`
	PruneInterval     time.Duration `json:"prune_interval" env:"RATE_LIMIT_PRUNE_INTERVAL" envDefault:"5m"`

	// Outbound pacing per upstream host.
	UpstreamRPS      float64 `json:"upstream_rps" env:"RATE_LIMIT_UPSTREAM_RPS" envDefault:"10"`
	UpstreamBurst    int     `json:"upstream_burst" env:"RATE_LIMIT_UPSTREAM_BURST" envDefault:"20"`
	UpstreamMaxHosts int     `json:"upstream_max_hosts" env:"RATE_LIMIT_UPSTREAM_MAX_HOSTS" envDefault:"1024"`
}

type CacheConfig struct {
	TTL           time.Duration `json:"ttl" env:"CACHE_TTL" envDefault:"168h"`
	SweepInterval time.Duration `json:"sweep_interval" env:"CACHE_SWEEP_INTERVAL" envDefault:"1h"`
	Shards        int           `json:"shards" env:"CACHE_SHARDS" envDefault:"32"`
}

type LoggingConfig struct {
	Level  string `json:"level" env:"LOG_LEVEL" envDefault:"info"`
	Format string `json:"format" env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPConfig struct {
	ClientTimeout time.Duration `json:"client_timeout" env:"HTTP_CLIENT_TIMEOUT" envDefault:"30s"`
	MaxRedirects  int           `json:"max_redirects" env:"HTTP_MAX_REDIRECTS" envDefault:"5"`
}

type OTelConfig struct {
	Enabled        bool    `json:"enabled" env:"OTEL_ENABLED" envDefault:"false"`
	ServiceName    string  `json:"service_name" env:"OTEL_SERVICE_NAME" envDefault:"imgproxy"`
	ServiceVersion string  `json:"service_version" env:"SERVICE_VERSION" envDefault:"0.0.0"`
	Environment    string  `json:"environment" env:"DEPLOYMENT_ENV" envDefault:"development"`
	Endpoint       string  `json:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"http://localhost:4318"`
	SampleRatio    float64 `json:"sample_ratio" env:"OTEL_TRACE_SAMPLE_RATIO" envDefault:"0.1"`
}

// NewConfig loads the configuration from the environment and validates it.
func NewConfig() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

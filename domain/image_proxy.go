package domain

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ImageFormat is an encoded image format handled by the transform pipeline.
type ImageFormat string

const (
	FormatJPEG  ImageFormat = "jpeg"
	FormatPNG   ImageFormat = "png"
	FormatWebP  ImageFormat = "webp"
	FormatOther ImageFormat = "other"
)

// ContentType returns the MIME type for the format.
func (f ImageFormat) ContentType() string {
	return "image/" + string(NormalizeFormat(string(f)))
}

// NormalizeFormat lowercases a format label and maps "jpg" to "jpeg".
func NormalizeFormat(label string) ImageFormat {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "jpg" {
		return FormatJPEG
	}
	return ImageFormat(label)
}

// TransformParams are the optional transform parameters of a proxy request.
// A zero Width, Height or Format and a nil Quality mean "not requested".
type TransformParams struct {
	Width   int
	Height  int
	Quality *int
	Format  string
}

// HasResize reports whether a target box was requested.
func (p TransformParams) HasResize() bool {
	return p.Width > 0 || p.Height > 0
}

// ImageProxyRequest is the parsed, protocol-independent input of the proxy usecase.
type ImageProxyRequest struct {
	SourceURL string
	Params    TransformParams
	ClientID  string
}

// ImageProxyResult represents a processed image ready for serving.
type ImageProxyResult struct {
	Data           []byte
	ContentType    string
	OriginalFormat ImageFormat
	OutputFormat   ImageFormat
	Width          int
	Height         int
	SizeBytes      int
	ETag           string
	CacheStatus    CacheStatus
	ExpiresAt      time.Time
}

// CacheStatus is reported to clients through the X-Cache header.
type CacheStatus string

const (
	CacheHit  CacheStatus = "HIT"
	CacheMiss CacheStatus = "MISS"
)

// ImageProxyCacheEntry represents a cached transform result. Entries are
// replaced wholesale, never updated in place.
type ImageProxyCacheEntry struct {
	Key            string
	OriginalURL    string
	Data           []byte
	ContentType    string
	OriginalFormat ImageFormat
	OutputFormat   ImageFormat
	Width          int
	Height         int
	SizeBytes      int
	ETag           string
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// IsExpired reports whether the entry must be treated as a miss at now.
func (e *ImageProxyCacheEntry) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// TransformResult is the output of the transform pipeline.
type TransformResult struct {
	Data           []byte
	ContentType    string
	OriginalFormat ImageFormat
	OutputFormat   ImageFormat
	Width          int
	Height         int
	SizeBytes      int
	ETag           string
}

// ProxyRequest is what the HTTP layer hands to the proxy handler.
type ProxyRequest struct {
	Method     string
	Header     http.Header
	Query      url.Values
	ClientAddr string
}

// ProxyResponse is what the proxy handler hands back to the HTTP layer.
type ProxyResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

const (
	// ImageProxyCacheTTL is the default TTL for cached images (one week).
	ImageProxyCacheTTL = 604800 * time.Second

	// ImageProxyCacheSweepInterval is how often expired entries are reclaimed.
	ImageProxyCacheSweepInterval = time.Hour

	// ImageProxyDefaultQuality is the default JPEG/WebP encoding quality (0-100).
	ImageProxyDefaultQuality = 80

	// ImageProxyWebPEffort is the WebP encoder method (0=fast, 6=slowest).
	ImageProxyWebPEffort = 4

	// ClientRateWindow and ClientRateMaxRequests bound requests per client.
	ClientRateWindow      = 60 * time.Second
	ClientRateMaxRequests = 15

	// ImageProxyCacheControl is sent with every successful image response.
	ImageProxyCacheControl = "public, max-age=604800"

	// DefaultAllowedImageDomain is the upstream host served by default.
	DefaultAllowedImageDomain = "artsco202525.speedgabia.com"

	cacheKeyAuto = "auto"
)

// BuildCacheKey derives the deterministic cache key for a source URL and its
// transform parameters. Unset parameters are encoded as "auto".
func BuildCacheKey(sourceURL string, p TransformParams) string {
	var b strings.Builder
	b.Grow(len(sourceURL) + 32)
	b.WriteString(sourceURL)
	b.WriteString("-w")
	b.WriteString(intOrAuto(p.Width))
	b.WriteString("-h")
	b.WriteString(intOrAuto(p.Height))
	b.WriteString("-q")
	if p.Quality != nil {
		b.WriteString(strconv.Itoa(*p.Quality))
	} else {
		b.WriteString(cacheKeyAuto)
	}
	b.WriteString("-f")
	if p.Format != "" {
		b.WriteString(p.Format)
	} else {
		b.WriteString(cacheKeyAuto)
	}
	return b.String()
}

func intOrAuto(v int) string {
	if v > 0 {
		return strconv.Itoa(v)
	}
	return cacheKeyAuto
}

package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ImageFetchResult represents the result of fetching an image
type ImageFetchResult struct {
	URL         string
	ContentType string
	Data        []byte
	Size        int
	FetchedAt   time.Time
}

// ImageFetchOptions represents options for fetching an image
type ImageFetchOptions struct {
	MaxSize int // Maximum size in bytes (default: 10MB)
}

// NewImageFetchOptions creates default ImageFetchOptions
func NewImageFetchOptions() *ImageFetchOptions {
	return &ImageFetchOptions{
		MaxSize: 10 * 1024 * 1024,
	}
}

// ValidateImageURL validates if the URL is suitable for image fetching
func ValidateImageURL(rawURL string) (*url.URL, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("URL cannot be empty")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL format: %w", err)
	}

	if parsedURL.Scheme != "https" && parsedURL.Scheme != "http" {
		return nil, fmt.Errorf("only HTTP and HTTPS URLs are allowed")
	}

	if parsedURL.Hostname() == "" {
		return nil, fmt.Errorf("URL must include a host")
	}

	return parsedURL, nil
}

// MatchesAllowedDomain reports whether hostname equals one of the allowed
// domains or is a subdomain of one. Comparison is case-insensitive.
func MatchesAllowedDomain(hostname string, allowedDomains []string) bool {
	hostname = strings.TrimSuffix(strings.ToLower(hostname), ".")
	if hostname == "" {
		return false
	}

	for _, allowedDomain := range allowedDomains {
		allowedDomain = strings.ToLower(strings.TrimSpace(allowedDomain))
		if allowedDomain == "" {
			continue
		}
		if hostname == allowedDomain || strings.HasSuffix(hostname, "."+allowedDomain) {
			return true
		}
	}

	return false
}

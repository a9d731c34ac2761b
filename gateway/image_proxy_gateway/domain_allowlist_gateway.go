package image_proxy_gateway

import (
	"context"
	"strings"

	"imgproxy/domain"

	"golang.org/x/net/idna"
)

// DomainAllowlistGateway implements DomainAllowlistPort with a static list of
// domains. A hostname is allowed when it equals a listed domain or is one of
// its subdomains.
type DomainAllowlistGateway struct {
	domains []string
}

// NewDomainAllowlistGateway creates a gateway for the given domains. Entries
// are normalized to their ASCII (punycode) form; invalid ones are dropped.
func NewDomainAllowlistGateway(domains []string) *DomainAllowlistGateway {
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		if ascii, ok := normalizeHostname(d); ok {
			normalized = append(normalized, ascii)
		}
	}
	return &DomainAllowlistGateway{domains: normalized}
}

// Domains returns the normalized allowlist.
func (g *DomainAllowlistGateway) Domains() []string {
	return append([]string(nil), g.domains...)
}

// IsAllowedImageDomain checks if the hostname is in the allowlist.
func (g *DomainAllowlistGateway) IsAllowedImageDomain(ctx context.Context, hostname string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ascii, ok := normalizeHostname(hostname)
	if !ok {
		return false, nil
	}
	return domain.MatchesAllowedDomain(ascii, g.domains), nil
}

func normalizeHostname(hostname string) (string, bool) {
	hostname = strings.TrimSuffix(strings.TrimSpace(hostname), ".")
	if hostname == "" {
		return "", false
	}
	ascii, err := idna.Lookup.ToASCII(hostname)
	if err != nil {
		// IP literals and names idna rejects are compared as-is.
		ascii = hostname
	}
	return strings.ToLower(ascii), true
}

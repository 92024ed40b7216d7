package audits

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DefaultProfileHosts is the host allow-list used when none is configured.
var DefaultProfileHosts = []string{"linkedin.com", "www.linkedin.com"}

var profilePath = regexp.MustCompile(`^/in/[A-Za-z0-9%_.\-]+$`)

// NormalizeProfileURL validates raw against the host allow-list and returns
// the canonical form used for dedup and webhook correlation: lowercase
// scheme and host, no query, no fragment, no trailing slash.
func NormalizeProfileURL(raw string, allowedHosts []string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: profileUrl is required", ErrValidation)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: invalid profileUrl: %v", ErrValidation, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: profileUrl must be http or https", ErrValidation)
	}
	host := strings.ToLower(u.Hostname())
	if len(allowedHosts) == 0 {
		allowedHosts = DefaultProfileHosts
	}
	if !hostAllowed(host, allowedHosts) {
		return "", fmt.Errorf("%w: profileUrl host %q is not supported", ErrValidation, host)
	}
	path := strings.TrimRight(u.EscapedPath(), "/")
	if !profilePath.MatchString(path) {
		return "", fmt.Errorf("%w: profileUrl must point to a profile (/in/<name>)", ErrValidation)
	}
	return scheme + "://" + host + path, nil
}

// CanonicalProfileURL normalizes a URL echoed back by the provider. It does
// not enforce the allow-list and returns "" when raw is not a URL.
func CanonicalProfileURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Hostname()) + strings.TrimRight(u.EscapedPath(), "/")
}

func hostAllowed(host string, allowed []string) bool {
	for _, h := range allowed {
		if strings.EqualFold(strings.TrimSpace(h), host) {
			return true
		}
	}
	return false
}

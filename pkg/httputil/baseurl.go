package httputil

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeBaseURL trims whitespace and a trailing slash from raw and
// validates it as a base URL for an outbound vendor API call (PMS,
// TTS engine, or any other HTTP dependency this orchestrator dials):
// it must parse, carry an http(s) scheme and a host, and must not embed
// user info, a query, or a fragment; all of those belong on the
// individual request, not the base.
func NormalizeBaseURL(raw string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if base == "" {
		return "", fmt.Errorf("base URL is required")
	}

	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("base URL must be a valid absolute URL")
	}
	if parsed.User != nil {
		return "", fmt.Errorf("base URL must not include user info")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("base URL scheme must be http or https")
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return "", fmt.Errorf("base URL must not include a query or fragment")
	}

	return base, nil
}

package httputil

import (
	"fmt"
	"net/http"
	"time"
)

// ClientConfig holds the per-vendor overrides a PMS or TTS adapter's
// Config struct wants to forward into its underlying *http.Client,
// keeping that construction logic out of every adapter's constructor.
type ClientConfig struct {
	// BaseURL is the vendor's API root (will be normalized).
	BaseURL string

	// Timeout is the request timeout. Zero means use ClientDefaults.Timeout.
	Timeout time.Duration

	// HTTPClient is the base client to copy (e.g. one sharing a
	// connection pool across adapters). If nil, a new client is created.
	HTTPClient *http.Client

	// MaxBodyBytes caps response body size read via ReadAllWithLimit.
	// Zero means use ClientDefaults.MaxBodyBytes.
	MaxBodyBytes int64
}

// ClientDefaults holds the fallback values a package applies when a
// ClientConfig field is left zero.
type ClientDefaults struct {
	Timeout      time.Duration
	MaxBodyBytes int64
}

func DefaultClientDefaults() ClientDefaults {
	return ClientDefaults{
		Timeout:      30 * time.Second,
		MaxBodyBytes: 1 << 20, // 1MiB
	}
}

// NewClientWithBaseURL normalizes cfg.BaseURL and returns an *http.Client
// carrying cfg.Timeout (falling back to defaults.Timeout), so a vendor
// adapter's constructor is one call instead of repeating normalization
// and timeout-defaulting logic inline.
func NewClientWithBaseURL(cfg ClientConfig, defaults ClientDefaults) (*http.Client, string, error) {
	normalized, err := NormalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("normalize base url: %w", err)
	}

	timeout := cfg.Timeout
	forceTimeout := cfg.Timeout != 0
	if timeout == 0 {
		timeout = defaults.Timeout
	}

	client := CopyHTTPClientWithTimeout(cfg.HTTPClient, timeout, forceTimeout)
	return client, normalized, nil
}

// ResolveMaxBodyBytes returns the effective max response body size from
// cfg, falling back to defaultBytes when cfg is zero or negative.
func ResolveMaxBodyBytes(cfg, defaultBytes int64) int64 {
	if cfg <= 0 {
		return defaultBytes
	}
	return cfg
}

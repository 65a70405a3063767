// Package apaleo implements the reference PMS connector against the
// Apaleo REST API: a thin typed client over the shared HTTP transport
// plus an adapter that maps vendor payloads into the normalized
// connector contract.
package apaleo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/voicehive-hotels/orchestrator/pkg/httputil"
)

const (
	defaultBaseURL   = "https://api.apaleo.com"
	defaultTimeout   = 15 * time.Second
	maxResponseBytes = 4 << 20 // 4MiB; a reservation payload is well under this

	// Apaleo throttles per client credential; staying under its limit
	// client-side avoids burning the 429 budget on our own bursts.
	defaultRequestsPerSecond = 10
	defaultBurst             = 20
)

// Config configures the Apaleo client.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	TokenURL     string
	PropertyID   string

	// RequestsPerSecond and Burst bound the client-side request rate;
	// zero values take the defaults above.
	RequestsPerSecond float64
	Burst             int
}

// Client is a thin typed wrapper over Apaleo's REST API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *tokenSource
	limiter *rate.Limiter
}

func NewClient(cfg Config) (*Client, error) {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}

	client, normalized, err := httputil.NewClientWithBaseURL(httputil.ClientConfig{
		BaseURL: base,
		HTTPClient: &http.Client{
			Transport: httputil.DefaultTransportWithMinTLS12(),
		},
	}, httputil.ClientDefaults{Timeout: defaultTimeout})
	if err != nil {
		return nil, fmt.Errorf("apaleo: invalid base url: %w", err)
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = normalized + "/oauth/v1/token"
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}

	return &Client{
		baseURL: normalized,
		http:    client,
		tokens:  newTokenSource(cfg.ClientID, cfg.ClientSecret, tokenURL),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}, nil
}

// request performs one HTTP call, attaching a bearer token and retrying
// exactly once after a forced token refresh on 401; never on any other
// status, matching the contract's "refresh-then-retry-once" rule. Calls
// wait on the client-side rate limiter first; a deadline that expires
// while queued surfaces as the context error.
func (c *Client) request(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.doOnce(ctx, method, path, query, body, false)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return c.doOnce(ctx, method, path, query, body, true)
	}
	return resp, nil
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, body any, forceRefresh bool) (*http.Response, error) {
	var token string
	var err error
	if forceRefresh {
		token, err = c.tokens.ForceRefresh(ctx)
	} else {
		token, err = c.tokens.Token(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("apaleo: token acquisition: %w", err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.http.Do(req)
}

// decodeJSON reads resp.Body (capped at maxResponseBytes so a
// misbehaving backend can't exhaust memory) into out, mapping any
// non-2xx status into a classified *voicehiveerr.Error via mapStatus
// (errors.go); status code inspection is the single point of truth,
// never the Go http package's error values or exception types.
func decodeJSON(resp *http.Response, out any) error {
	defer resp.Body.Close()
	raw, truncated, err := httputil.ReadAllWithLimit(resp.Body, maxResponseBytes)
	if err != nil {
		return err
	}
	if truncated {
		return fmt.Errorf("apaleo: response body exceeds %d bytes", maxResponseBytes)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return mapStatus(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

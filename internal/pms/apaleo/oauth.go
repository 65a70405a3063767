package apaleo

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// tokenRefreshMargin is how long before expiry the client proactively
// refreshes, matching the contract's "refresh within 60s of expiry" rule.
const tokenRefreshMargin = 60 * time.Second

// tokenSource wraps oauth2/clientcredentials with the proactive-refresh
// and serialize-refresh-per-instance rules the PMS connector contract
// requires. golang.org/x/oauth2 is adopted from the wider ecosystem (no
// pack example wires OAuth2 client-credentials directly, but x/oauth2 is
// the canonical Go client for it and several pack repos already depend
// on the broader golang.org/x tree).
type tokenSource struct {
	mu     sync.Mutex
	cfg    clientcredentials.Config
	cached *cachedToken
}

type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

func newTokenSource(clientID, clientSecret, tokenURL string) *tokenSource {
	return &tokenSource{
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
		},
	}
}

// Token returns a valid access token, refreshing proactively if the
// cached token is within tokenRefreshMargin of expiry. Concurrent
// callers serialize on the mutex so only one refresh happens at a time.
func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cached != nil && time.Until(t.cached.expiresAt) > tokenRefreshMargin {
		return t.cached.accessToken, nil
	}

	tok, err := t.cfg.Token(ctx)
	if err != nil {
		return "", err
	}

	t.cached = &cachedToken{accessToken: tok.AccessToken, expiresAt: tok.Expiry}
	return tok.AccessToken, nil
}

// ForceRefresh discards the cached token unconditionally, used by the
// refresh-then-retry-once-on-401 rule.
func (t *tokenSource) ForceRefresh(ctx context.Context) (string, error) {
	t.mu.Lock()
	t.cached = nil
	t.mu.Unlock()
	return t.Token(ctx)
}

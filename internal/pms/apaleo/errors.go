package apaleo

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/voicehive-hotels/orchestrator/pkg/voicehiveerr"
)

// mapStatus is the single point where vendor HTTP status codes are
// classified into the orchestrator's error taxonomy. Classification
// consults the response status only, never transport error types.
func mapStatus(status int, body []byte) error {
	msg := fmt.Sprintf("apaleo responded %d", status)
	switch {
	case status == 400 || status == 422:
		return voicehiveerr.Validation(msg, fmt.Errorf("%s", string(body)))
	case status == 401 || status == 403:
		return voicehiveerr.Auth(msg, fmt.Errorf("%s", string(body)))
	case status == 404:
		return voicehiveerr.NotFound(msg, nil)
	case status == 409:
		return voicehiveerr.Conflict(msg, fmt.Errorf("%s", string(body)))
	case status == 429:
		return voicehiveerr.RateLimited(msg, parseRetryAfter(body))
	case status >= 500:
		return voicehiveerr.Transient(msg, fmt.Errorf("%s", string(body)))
	default:
		return voicehiveerr.Internal(msg, fmt.Errorf("%s", string(body)))
	}
}

// parseRetryAfter looks for a "retryAfter" seconds field Apaleo's 429
// payloads carry; falls back to a conservative default when absent.
func parseRetryAfter(body []byte) time.Duration {
	const fallback = 5 * time.Second
	secs := gjson.GetBytes(body, "retryAfter")
	if !secs.Exists() || secs.Int() <= 0 {
		return fallback
	}
	return time.Duration(secs.Int()) * time.Second
}

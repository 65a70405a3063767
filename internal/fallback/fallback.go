// Package fallback runs a primary synthesis/recognition call and, on
// failure, degrades through a caller-supplied chain of substitutes. The
// type parameter keeps a TTS engine call and its mock substitute free
// of interface{} boxing and type assertions at the call site.
package fallback

import (
	"context"
	"time"
)

// Config controls the backoff applied between a failed attempt and the
// next one in the chain.
type Config struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     float64
}

func DefaultConfig() Config {
	return Config{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
	}
}

// Func performs one attempt in a fallback chain and returns the
// synthesized/recognized value on success.
type Func[T any] func(ctx context.Context) (T, error)

// Handler runs a primary Func and, on error, walks a chain of
// substitute Funcs in order, applying backoff between attempts.
type Handler[T any] struct {
	config Config
}

// Result reports which link in the chain produced the value and how
// many links were tried.
type Result[T any] struct {
	Value    T
	Err      error
	Source   string
	Attempts int
}

func NewHandler[T any](cfg Config) *Handler[T] {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0.1
	}
	return &Handler[T]{config: cfg}
}

// Execute calls primary; on error it calls each of substitutes in
// order, waiting calculateDelay(attempt) between tries, and returns the
// first success. If every link fails it returns the last error with
// Source "exhausted".
func (h *Handler[T]) Execute(ctx context.Context, primary Func[T], substitutes ...Func[T]) *Result[T] {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt < len(substitutes)+1; attempt++ {
		attempts++

		var fn Func[T]
		var source string
		if attempt == 0 {
			fn = primary
			source = "primary"
		} else {
			fn = substitutes[attempt-1]
			source = "substitute"
		}

		value, err := fn(ctx)
		if err == nil {
			return &Result[T]{Value: value, Source: source, Attempts: attempts}
		}
		lastErr = err

		if attempt < len(substitutes) {
			delay := h.calculateDelay(attempt)
			select {
			case <-ctx.Done():
				var zero T
				return &Result[T]{Value: zero, Err: ctx.Err(), Source: source, Attempts: attempts}
			case <-time.After(delay):
			}
		}
	}

	var zero T
	return &Result[T]{Value: zero, Err: lastErr, Source: "exhausted", Attempts: attempts}
}

func (h *Handler[T]) calculateDelay(attempt int) time.Duration {
	delay := float64(h.config.BaseDelay) * pow(h.config.Multiplier, float64(attempt))
	if delay > float64(h.config.MaxDelay) {
		delay = float64(h.config.MaxDelay)
	}

	jitterRange := delay * h.config.Jitter
	if jitterRange >= 1 {
		jitter := float64(time.Now().UnixNano() % int64(2*jitterRange))
		delay = delay - jitterRange + jitter
	}
	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

func pow(base, exp float64) float64 {
	result := 1.0
	expInt := int(exp)
	for expInt > 0 {
		if expInt%2 == 1 {
			result *= base
		}
		base *= base
		expInt /= 2
	}
	return result
}

package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voicehive-hotels/orchestrator/pkg/voicehiveerr"
)

// SharedStateStore lets breaker state be replicated across replicas. It
// is satisfied by internal/cache's shared tier; a nil store means every
// replica keeps fully local, independent breaker state (degraded but
// acceptable).
type SharedStateStore interface {
	PublishBreakerState(ctx context.Context, key string, snap Snapshot) error
	FetchBreakerState(ctx context.Context, key string) (Snapshot, bool, error)
}

// Fabric is the process-wide registry of circuit breakers, keyed by
// (dependency, kind) so that, for example, PMS "read" calls and PMS
// "write" calls to the same vendor can trip independently.
type Fabric struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	configs  map[string]Config
	shared   SharedStateStore
	logger   StateChangeLogger
}

// StateChangeLogger is a minimal seam so this package does not import
// pkg/logging directly; callers wire their logger's WithFields/Warn call
// through this.
type StateChangeLogger interface {
	WarnStateChange(dependency string, from, to State)
}

func NewFabric(shared SharedStateStore, logger StateChangeLogger) *Fabric {
	return &Fabric{
		breakers: make(map[string]*CircuitBreaker),
		configs:  make(map[string]Config),
		shared:   shared,
		logger:   logger,
	}
}

// Configure registers a non-default Config for a given dependency+kind
// before first use. Calling this after the breaker has been created via
// Execute has no effect on the already-created breaker.
func (f *Fabric) Configure(dependency, kind string, cfg Config) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs[key(dependency, kind)] = cfg
}

func key(dependency, kind string) string {
	return dependency + "|" + kind
}

func (f *Fabric) breakerFor(dependency, kind string) *CircuitBreaker {
	k := key(dependency, kind)
	f.mu.Lock()
	defer f.mu.Unlock()

	if cb, ok := f.breakers[k]; ok {
		return cb
	}
	cfg, ok := f.configs[k]
	if !ok {
		cfg = DefaultConfig()
	}
	cfg.OnStateChange = func(dependency string, from, to State) {
		if f.logger != nil {
			f.logger.WarnStateChange(dependency, from, to)
		}
	}
	cb := NewCircuitBreaker(dependency, kind, cfg)
	f.breakers[k] = cb
	return cb
}

// Snapshots returns the current state of every breaker this replica has
// created so far, for the supervisor's periodic metrics export.
func (f *Fabric) Snapshots() []Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Snapshot, 0, len(f.breakers))
	for _, cb := range f.breakers {
		out = append(out, cb.Snapshot())
	}
	return out
}

// Snapshot returns the current breaker state for (dependency, kind),
// preferring locally-observed state, falling back to the shared store
// when this replica has never called through this breaker yet.
func (f *Fabric) Snapshot(ctx context.Context, dependency, kind string) (Snapshot, error) {
	f.mu.Lock()
	cb, ok := f.breakers[key(dependency, kind)]
	f.mu.Unlock()
	if ok {
		return cb.Snapshot(), nil
	}
	if f.shared == nil {
		return Snapshot{Dependency: dependency, Kind: kind, State: StateClosed}, nil
	}
	snap, found, err := f.shared.FetchBreakerState(ctx, key(dependency, kind))
	if err != nil {
		return Snapshot{}, err
	}
	if !found {
		return Snapshot{Dependency: dependency, Kind: kind, State: StateClosed}, nil
	}
	return snap, nil
}

// Execute runs fn protected by the (dependency, kind) breaker. On a trip
// it returns a *voicehiveerr.Error with KindCircuitOpen carrying the
// breaker's NextAttemptAt rather than a bare sentinel error, so callers
// can surface retry-after information without a type assertion into this
// package.
func (f *Fabric) Execute(ctx context.Context, dependency, kind string, fn func(ctx context.Context) error) error {
	cb := f.breakerFor(dependency, kind)
	now := time.Now()

	allow, nextAttempt := cb.beforeCall(now)
	if !allow {
		return voicehiveerr.CircuitOpen(dependency, nextAttempt)
	}

	err := fn(ctx)
	cb.afterCall(err == nil, time.Now())

	if f.shared != nil {
		_ = f.shared.PublishBreakerState(ctx, key(dependency, kind), cb.Snapshot())
	}

	return err
}

// ExecuteWithRetry composes Execute with Retry: every attempt goes
// through the same breaker, so a breaker trip mid-retry stops the loop
// immediately (CircuitOpen is not in voicehiveerr.Retryable's allow-list).
func (f *Fabric) ExecuteWithRetry(ctx context.Context, dependency, kind string, retryCfg RetryConfig, fn func(ctx context.Context) error) error {
	return Retry(ctx, retryCfg, func() error {
		return f.Execute(ctx, dependency, kind, fn)
	})
}

// WithDeadline wraps fn so it is cancelled if it runs longer than d,
// returning a KindTimeout error rather than whatever the underlying call
// would produce on a cancelled context.
func WithDeadline(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}
	dctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(dctx) }()

	select {
	case err := <-done:
		return err
	case <-dctx.Done():
		return voicehiveerr.Timeout(fmt.Sprintf("operation exceeded %s", d), dctx.Err())
	}
}

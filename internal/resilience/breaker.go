// Package resilience implements the fault-tolerance fabric every outbound
// dependency call (PMS, ASR, TTS, secret store, cache) goes through: a
// per-(dependency,kind) circuit breaker with externally observable state,
// jittered exponential backoff retry, and bounded connection pools.
package resilience

import (
	"sync"
	"time"
)

// State is the circuit breaker's current phase.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config tunes a single breaker's thresholds.
type Config struct {
	MaxFailures   int           // consecutive failures before opening
	Timeout       time.Duration // time spent open before probing half-open
	OnStateChange func(dependency string, from, to State)
}

func DefaultConfig() Config {
	return Config{
		MaxFailures: 5,
		Timeout:     30 * time.Second,
	}
}

// Snapshot is the externally observable state of a breaker; this is
// what distinguishes this fabric from a thin gobreaker wrapper: callers
// can inspect NextAttemptAt and the running counters directly, and the
// same shape is what gets replicated to the shared cache tier when
// cross-replica state sharing is enabled.
type Snapshot struct {
	Dependency    string
	Kind          string
	State         State
	FailureCount  int
	SuccessCount  int
	LastFailureAt time.Time
	NextAttemptAt time.Time
	TotalRequests int64
	TotalFailures int64
	TotalSuccess  int64
}

// CircuitBreaker is a from-scratch state machine (not a sony/gobreaker
// wrapper) because the fabric's contract requires external state
// inspection (Snapshot) and optional replication that gobreaker's opaque
// Counts type cannot provide.
type CircuitBreaker struct {
	mu         sync.Mutex
	dependency string
	kind       string
	config     Config

	state            State
	failures         int
	successes        int
	halfOpenInFlight bool
	lastFailure      time.Time
	nextAttempt      time.Time

	totalReq   int64
	totalFail  int64
	totalSucc  int64
}

func NewCircuitBreaker(dependency, kind string, cfg Config) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &CircuitBreaker{dependency: dependency, kind: kind, config: cfg, state: StateClosed}
}

// ErrCircuitOpenSentinel and ErrTooManyRequests are not exported directly;
// callers get a *voicehiveerr.Error via Fabric.Execute instead. beforeCall
// reports plain booleans so this file stays independent of the error
// taxonomy package.
func (cb *CircuitBreaker) beforeCall(now time.Time) (allow bool, nextAttemptAt time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if now.After(cb.nextAttempt) {
			cb.setState(StateHalfOpen, now)
			cb.halfOpenInFlight = true
			return true, time.Time{}
		}
		return false, cb.nextAttempt
	case StateHalfOpen:
		// Exactly one probe is admitted in half-open; every other caller
		// fails fast until that probe's result lands in afterCall.
		if cb.halfOpenInFlight {
			return false, cb.nextAttempt
		}
		cb.halfOpenInFlight = true
		return true, time.Time{}
	default:
		return true, time.Time{}
	}
}

func (cb *CircuitBreaker) afterCall(success bool, now time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalReq++
	if success {
		cb.totalSucc++
		cb.onSuccess(now)
	} else {
		cb.totalFail++
		cb.onFailure(now)
	}
}

func (cb *CircuitBreaker) onSuccess(now time.Time) {
	switch cb.state {
	case StateHalfOpen:
		cb.successes++
		cb.setState(StateClosed, now)
	case StateClosed:
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) onFailure(now time.Time) {
	cb.failures++
	cb.lastFailure = now

	switch cb.state {
	case StateHalfOpen:
		cb.setState(StateOpen, now)
	case StateClosed:
		if cb.failures >= cb.config.MaxFailures {
			cb.setState(StateOpen, now)
		}
	}
}

func (cb *CircuitBreaker) setState(newState State, now time.Time) {
	if cb.state == newState {
		return
	}
	old := cb.state
	cb.state = newState
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenInFlight = false
	if newState == StateOpen {
		cb.nextAttempt = now.Add(cb.config.Timeout)
	}

	if cb.config.OnStateChange != nil {
		go cb.config.OnStateChange(cb.dependency, old, newState)
	}
}

func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Snapshot{
		Dependency:    cb.dependency,
		Kind:          cb.kind,
		State:         cb.state,
		FailureCount:  cb.failures,
		SuccessCount:  cb.successes,
		LastFailureAt: cb.lastFailure,
		NextAttemptAt: cb.nextAttempt,
		TotalRequests: cb.totalReq,
		TotalFailures: cb.totalFail,
		TotalSuccess:  cb.totalSucc,
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Package circuitbreaker stops calling a failing dependency for a cooling
// period. The breaker opens after a run of consecutive failures, rejects
// calls while open, then lets a limited number of trial calls through
// half-open; enough successes close it again.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the state name for logs.
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

// ErrCircuitOpen rejects calls while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrTooManyCalls rejects calls beyond the half-open trial budget.
var ErrTooManyCalls = errors.New("circuit breaker half-open call limit reached")

// Counts tracks call outcomes within the current state.
type Counts struct {
	Calls                int
	Successes            int
	Failures             int
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
}

// Settings configures a breaker. Zero values fall back to the defaults in
// New.
type Settings struct {
	// Name identifies the breaker in state-change callbacks.
	Name string

	// FailureThreshold opens the breaker after this many consecutive
	// failures.
	FailureThreshold int

	// SuccessThreshold closes a half-open breaker after this many
	// consecutive trial successes.
	SuccessThreshold int

	// OpenTimeout is how long the breaker stays open before allowing
	// trial calls.
	OpenTimeout time.Duration

	// HalfOpenMaxCalls caps concurrent trial calls while half-open.
	HalfOpenMaxCalls int

	// OnStateChange is invoked after every transition.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker guards one dependency.
type CircuitBreaker struct {
	settings Settings

	mu       sync.Mutex
	state    State
	counts   Counts
	inflight int
	openedAt time.Time
}

// New creates a breaker, filling unset settings with defaults (5 failures
// to open, 1 success to close, 30s open timeout, 1 half-open call).
func New(settings Settings) *CircuitBreaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = 1
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Second
	}
	if settings.HalfOpenMaxCalls <= 0 {
		settings.HalfOpenMaxCalls = 1
	}
	return &CircuitBreaker{settings: settings}
}

// Execute runs op under the breaker. While open it returns ErrCircuitOpen
// without calling op; beyond the half-open budget it returns
// ErrTooManyCalls. Context errors from op count as failures.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := op(ctx)
	cb.afterCall(err == nil)
	return err
}

// State returns the current state, advancing open → half-open when the
// timeout has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeHalfOpen()
	return cb.state
}

// Counts returns a copy of the current counters.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.maybeHalfOpen()
	switch cb.state {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.inflight >= cb.settings.HalfOpenMaxCalls {
			return ErrTooManyCalls
		}
	}
	cb.counts.Calls++
	cb.inflight++
	return nil
}

func (cb *CircuitBreaker) afterCall(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.inflight > 0 {
		cb.inflight--
	}
	if success {
		cb.counts.Successes++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.settings.SuccessThreshold {
			cb.setState(StateClosed)
		}
		return
	}

	cb.counts.Failures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0
	switch cb.state {
	case StateHalfOpen:
		cb.setState(StateOpen)
	case StateClosed:
		if cb.counts.ConsecutiveFailures >= cb.settings.FailureThreshold {
			cb.setState(StateOpen)
		}
	}
}

// maybeHalfOpen transitions open → half-open once OpenTimeout has passed.
// Callers must hold mu.
func (cb *CircuitBreaker) maybeHalfOpen() {
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.settings.OpenTimeout {
		cb.setState(StateHalfOpen)
	}
}

// setState transitions and resets the counters. Callers must hold mu.
func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.counts = Counts{}
	if to == StateOpen {
		cb.openedAt = time.Now()
	}
	if cb.settings.OnStateChange != nil {
		cb.settings.OnStateChange(cb.settings.Name, from, to)
	}
}

// ContentAPIBreaker guards the remote content service: trip fast, then
// allow a single trial call after a minute.
func ContentAPIBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(Settings{
		Name:             "content-api",
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenTimeout:      60 * time.Second,
		HalfOpenMaxCalls: 1,
		OnStateChange:    onStateChange,
	})
}

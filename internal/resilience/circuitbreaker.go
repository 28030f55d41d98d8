// Package resilience keeps a live call talking when speech backends fail.
//
// [CircuitBreaker] is a three-state breaker (closed, open, half-open) that
// stops a misbehaving dialogue or synthesis backend from being hammered while
// a caller waits on the line. [FallbackGroup] chains several backends of one
// provider type behind per-backend breakers so the pipeline silently moves to
// the next healthy one, and [RetryOnce] gives server-class errors a single
// second chance before failover.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker is
// open and its cooldown has not elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker defaults are tuned for backends on the critical path of a phone
// call. A caller hears dead air while a backend flaps, so the breaker trips
// after few failures and re-probes quickly instead of benching a backend for
// half a minute.
const (
	defaultMaxFailures  = 3
	defaultResetTimeout = 15 * time.Second
	defaultHalfOpenMax  = 2
)

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the cooldown
	// elapses.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through. Probes
	// decide whether the breaker closes again or re-opens.
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

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero fields take the
// call-path defaults above.
type CircuitBreakerConfig struct {
	// Name labels the protected backend in log lines, e.g. "openai".
	Name string

	// MaxFailures is how many consecutive failures trip the breaker.
	MaxFailures int

	// ResetTimeout is the open-state cooldown before probing resumes.
	ResetTimeout time.Duration

	// HalfOpenMax bounds concurrent probes and is the number of probe
	// successes needed to close again.
	HalfOpenMax int

	// Logger defaults to [slog.Default].
	Logger *slog.Logger
}

// CircuitBreaker guards one speech backend. It trips open after consecutive
// failures, rejects calls for a cooldown, then probes with a few real calls
// before trusting the backend again.
type CircuitBreaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	halfOpenMax int
	logger      *slog.Logger
	now         func() time.Time // swapped out in tests

	mu        sync.Mutex
	state     State
	fails     int // consecutive failures while closed
	probes    int // half-open calls admitted
	probeWins int // half-open calls succeeded
	trippedAt time.Time
}

// NewCircuitBreaker creates a breaker with the supplied configuration.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaultResetTimeout
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = defaultHalfOpenMax
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CircuitBreaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.ResetTimeout,
		halfOpenMax: cfg.HalfOpenMax,
		logger:      cfg.Logger,
		now:         time.Now,
		state:       StateClosed,
	}
}

// Execute runs fn if the breaker admits the call, and feeds the outcome back
// into the breaker. Rejected calls return [ErrCircuitOpen] without running fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()
	cb.observe(probe, err)
	return err
}

// admit decides whether a call may proceed. It reports whether the call
// counts as a half-open probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.trippedAt) < cb.cooldown {
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probes = 0
		cb.probeWins = 0
		cb.logger.Info("circuit breaker probing", "name", cb.name)

	case StateHalfOpen:
		if cb.probes >= cb.halfOpenMax {
			// Probe budget spent, verdict pending.
			return false, ErrCircuitOpen
		}
	}

	if cb.state == StateHalfOpen {
		cb.probes++
		return true, nil
	}
	return false, nil
}

// observe records a call outcome. probe must be the value admit returned for
// the same call.
func (cb *CircuitBreaker) observe(probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.trippedAt = cb.now()
		if probe {
			// One bad probe and the backend goes back on the bench.
			cb.state = StateOpen
			cb.fails = cb.maxFailures
			cb.logger.Warn("circuit breaker re-opened", "name", cb.name)
			return
		}
		cb.fails++
		if cb.fails >= cb.maxFailures {
			cb.state = StateOpen
			cb.logger.Warn("circuit breaker opened",
				"name", cb.name, "consecutive_failures", cb.fails)
		}
		return
	}

	if probe {
		cb.probeWins++
		if cb.probeWins >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.fails = 0
			cb.logger.Info("circuit breaker closed", "name", cb.name)
		}
		return
	}
	cb.fails = 0
}

// State returns the breaker's current state. An open breaker whose cooldown
// has elapsed reports [StateHalfOpen]; the stored transition happens on the
// next [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.trippedAt) >= cb.cooldown {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.fails = 0
	cb.probes = 0
	cb.probeWins = 0
	cb.logger.Info("circuit breaker reset", "name", cb.name)
}

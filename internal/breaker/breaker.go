// Package breaker provides the circuit breaker shared by components that
// make resilient remote calls, notably relay sink workers.
package breaker

import "time"

// State of the circuit.
type State int

const (
	// Closed: calls flow normally.
	Closed State = iota
	// Open: calls are rejected fast until the cooldown elapses.
	Open
	// HalfOpen: one probe call is allowed through.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config sets the transition thresholds.
type Config struct {
	// FailureThreshold is the consecutive-failure count that opens the circuit.
	FailureThreshold int
	// Cooldown is how long the circuit stays open before allowing a probe.
	Cooldown time.Duration
}

func DefaultConfig() Config {
	return Config{FailureThreshold: 5, Cooldown: 2 * time.Second}
}

// Breaker is a consecutive-failure circuit breaker. It is owned by exactly
// one worker goroutine and is not safe for concurrent use.
type Breaker struct {
	cfg      Config
	state    State
	failures int
	openedAt time.Time
	now      func() time.Time
}

func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}
	return &Breaker{cfg: cfg, state: Closed, now: time.Now}
}

// NewWithClock is New with an injected clock, for tests.
func NewWithClock(cfg Config, now func() time.Time) *Breaker {
	b := New(cfg)
	b.now = now
	return b
}

// Allow reports whether a call may proceed, transitioning Open -> HalfOpen
// once the cooldown has elapsed.
func (b *Breaker) Allow() bool {
	switch b.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
			b.state = HalfOpen
			return true
		}
		return false
	default:
		return false
	}
}

// Success records a successful call: a half-open probe or any closed-state
// success resets the circuit.
func (b *Breaker) Success() {
	b.failures = 0
	b.state = Closed
}

// Failure records a failed call and returns the resulting state. A failed
// half-open probe reopens immediately; in closed state the circuit opens once
// consecutive failures reach the threshold.
func (b *Breaker) Failure() State {
	switch b.state {
	case HalfOpen:
		b.trip()
	case Closed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.trip()
		}
	}
	return b.state
}

func (b *Breaker) trip() {
	b.state = Open
	b.failures = 0
	b.openedAt = b.now()
}

// State returns the current state without side effects.
func (b *Breaker) State() State {
	return b.state
}

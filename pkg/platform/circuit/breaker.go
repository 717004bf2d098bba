// Package circuit provides a small consecutive-count circuit breaker used to
// shield best-effort remote calls (insurance claim submission) from a flapping
// downstream service.
package circuit

import (
	"sync"
	"time"
)

// State of a breaker.
type State string

const (
	StateClosed State = "closed"
	StateOpen   State = "open"
)

// StateChange reports a transition caused by a recorded outcome.
type StateChange struct {
	Opened bool
	Closed bool
}

// Breaker tracks consecutive failures and successes. After failureThreshold
// consecutive failures it opens and Allow rejects calls for the cooldown
// period. Once the cooldown expires, Allow admits trial calls again; a failed
// trial call re-arms the cooldown, while successThreshold consecutive
// successes close the circuit.
type Breaker struct {
	mu sync.Mutex

	name             string
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	now              func() time.Time

	state     State
	failures  int
	successes int
	openUntil time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold sets consecutive failures required to open the circuit.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets consecutive successes required to close an open circuit.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithCooldown sets how long an open circuit rejects calls before admitting
// trial calls.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// New creates a closed breaker with a failure threshold of 5, a success
// threshold of 1, and a one minute cooldown unless overridden.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: 5,
		successThreshold: 1,
		cooldown:         time.Minute,
		state:            StateClosed,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the breaker's name, used in logs and metrics.
func (b *Breaker) Name() string { return b.name }

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsOpen reports whether the circuit is open.
func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

// Allow reports whether a call may proceed. It is true while the circuit is
// closed, and becomes true again once an open circuit's cooldown has expired
// so trial calls can test whether the downstream recovered.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateClosed {
		return true
	}
	return !b.now().Before(b.openUntil)
}

// RecordFailure records a failed call. It returns whether the caller should
// use its fallback path, and any state transition this failure caused. A
// failed trial call re-arms the cooldown of an open circuit.
func (b *Breaker) RecordFailure() (useFallback bool, change StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes = 0
	if b.state == StateOpen {
		b.openUntil = b.now().Add(b.cooldown)
		return true, StateChange{}
	}

	b.failures++
	if b.failures >= b.failureThreshold {
		b.state = StateOpen
		b.openUntil = b.now().Add(b.cooldown)
		b.failures = 0
		return true, StateChange{Opened: true}
	}
	return false, StateChange{}
}

// Reset closes the circuit and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
}

// RecordSuccess records a successful call. It returns whether the caller
// should use (or keep using) the primary path, and any state transition this
// success caused.
func (b *Breaker) RecordSuccess() (usePrimary bool, change StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == StateClosed {
		return true, StateChange{}
	}

	b.successes++
	if b.successes >= b.successThreshold {
		b.state = StateClosed
		b.successes = 0
		return true, StateChange{Closed: true}
	}
	return false, StateChange{}
}

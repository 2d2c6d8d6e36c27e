// Package circuit implements a closed/open/half-open circuit breaker
// wrapping Agent-to-Hive RPCs: a Hive outage degrades calling code to
// local-only enforcement instead of cascading failures. Three states, a
// success threshold to close from half-open, and a single half-open
// failure reopens immediately.
package circuit

import (
	"sync"
	"time"
)

// State is the breaker's current mode.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker guards a single remote dependency. The zero value is not usable;
// construct with New.
type Breaker struct {
	name             string
	failureThreshold int
	successThreshold int
	timeout          time.Duration

	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	lastStateChange time.Time
	totalRequests   uint64

	onOpen  func(name string)
	onClose func(name string)
}

// New creates a Breaker. failureThreshold defaults to 5 and timeout to 30s
// if given as zero, matching breaker_init's defaults.
func New(name string, failureThreshold int, successThreshold int, timeout time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if successThreshold <= 0 {
		successThreshold = 3
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Breaker{
		name:             name,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		state:            Closed,
	}
}

// OnOpen registers a callback fired when the breaker transitions to Open.
func (b *Breaker) OnOpen(fn func(name string)) { b.onOpen = fn }

// OnClose registers a callback fired when the breaker transitions to Closed.
func (b *Breaker) OnClose(fn func(name string)) { b.onClose = fn }

// Allow reports whether a request should be attempted. In Open state this
// returns false until timeout has elapsed since the last failure, at which
// point the breaker moves to HalfOpen and lets the caller through. While
// HalfOpen every call is allowed until Success or Failure settles the state.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalRequests++

	switch b.state {
	case Closed:
		return true
	case Open:
		if time.Since(b.lastFailureTime) >= b.timeout {
			b.state = HalfOpen
			b.lastStateChange = time.Now()
			b.successCount = 0
			return true
		}
		return false
	case HalfOpen:
		return true
	}
	return true
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failureCount = 0
	case HalfOpen:
		b.successCount++
		if b.successCount >= b.successThreshold {
			b.state = Closed
			b.lastStateChange = time.Now()
			b.failureCount = 0
			if b.onClose != nil {
				b.onClose(b.name)
			}
		}
	}
}

// Failure records a failed call. A single failure while HalfOpen reopens
// the breaker immediately.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureTime = time.Now()

	switch b.state {
	case Closed:
		b.failureCount++
		if b.failureCount >= b.failureThreshold {
			b.state = Open
			b.lastStateChange = time.Now()
			if b.onOpen != nil {
				b.onOpen(b.name)
			}
		}
	case HalfOpen:
		b.state = Open
		b.lastStateChange = time.Now()
		b.successCount = 0
		if b.onOpen != nil {
			b.onOpen(b.name)
		}
	}
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats reports the breaker's counters for diagnostics/metrics export.
type Stats struct {
	State         State
	FailureCount  int
	TotalRequests uint64
}

func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{State: b.state, FailureCount: b.failureCount, TotalRequests: b.totalRequests}
}

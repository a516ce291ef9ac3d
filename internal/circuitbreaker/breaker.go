package circuitbreaker

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// State represents circuit breaker state
type State int32

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

// ErrOpen is returned by Do while the breaker rejects calls
var ErrOpen = errors.New("circuit breaker is open")

// Breaker implements circuit breaker pattern
type Breaker struct {
	maxFailures int64
	timeout     time.Duration
	mu          sync.RWMutex
	state       int32 // State (atomic)
	failures    int64 // Failure count (atomic)
	lastFailure time.Time
	onChange    func(State)
	now         func() time.Time
}

// NewBreaker creates a new circuit breaker
func NewBreaker(maxFailures int64, timeout time.Duration) *Breaker {
	return &Breaker{
		maxFailures: maxFailures,
		timeout:     timeout,
		state:       int32(StateClosed),
		now:         time.Now,
	}
}

// OnStateChange registers fn to be called after every state transition.
// Set it before the breaker is shared.
func (b *Breaker) OnStateChange(fn func(State)) {
	b.onChange = fn
}

// Allow checks if the circuit breaker allows the request
func (b *Breaker) Allow() bool {
	state := State(atomic.LoadInt32(&b.state))

	switch state {
	case StateClosed:
		return true
	case StateOpen:
		b.mu.RLock()
		lastFailure := b.lastFailure
		b.mu.RUnlock()
		if b.now().Sub(lastFailure) >= b.timeout {
			// Only one caller probes in half-open
			if atomic.CompareAndSwapInt32(&b.state, int32(StateOpen), int32(StateHalfOpen)) {
				atomic.StoreInt64(&b.failures, 0)
				b.changed(StateHalfOpen)
				return true
			}
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

// RecordSuccess records a successful request
func (b *Breaker) RecordSuccess() {
	if atomic.CompareAndSwapInt32(&b.state, int32(StateHalfOpen), int32(StateClosed)) {
		atomic.StoreInt64(&b.failures, 0)
		b.changed(StateClosed)
		return
	}
	if State(atomic.LoadInt32(&b.state)) == StateClosed {
		atomic.StoreInt64(&b.failures, 0)
	}
}

// RecordFailure records a failed request
func (b *Breaker) RecordFailure() {
	failures := atomic.AddInt64(&b.failures, 1)
	b.mu.Lock()
	b.lastFailure = b.now()
	b.mu.Unlock()

	if State(atomic.LoadInt32(&b.state)) == StateHalfOpen {
		if atomic.CompareAndSwapInt32(&b.state, int32(StateHalfOpen), int32(StateOpen)) {
			b.changed(StateOpen)
		}
		return
	}
	if failures >= b.maxFailures {
		if atomic.CompareAndSwapInt32(&b.state, int32(StateClosed), int32(StateOpen)) {
			b.changed(StateOpen)
		}
	}
}

// Do runs fn if the breaker allows it and records the outcome
func (b *Breaker) Do(fn func() error) error {
	if !b.Allow() {
		return ErrOpen
	}
	if err := fn(); err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}

// State returns the current state
func (b *Breaker) State() State {
	return State(atomic.LoadInt32(&b.state))
}

func (b *Breaker) changed(s State) {
	if b.onChange != nil {
		b.onChange(s)
	}
}

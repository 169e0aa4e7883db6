package workerpool

import (
	"sync"
	"time"

	"github.com/coralcommerce/dispatcher/errs"
)

type breakerState int

const (
	closed breakerState = iota
	open
	halfOpen
)

// CircuitBreaker protects InferReply calls: it opens after a run of
// consecutive failures and allows a single half-open probe after a
// cooldown.
type CircuitBreaker struct {
	failureThreshold int
	openDuration     time.Duration

	mu           sync.Mutex
	state        breakerState
	consecutive  int
	openedAt     time.Time
	probeInFlight bool
}

func NewCircuitBreaker(failureThreshold int, openDuration time.Duration) *CircuitBreaker {
	return &CircuitBreaker{failureThreshold: failureThreshold, openDuration: openDuration}
}

// Allow reports whether a call may proceed right now, marking a
// half-open probe as in-flight if this call is the probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case closed:
		return true
	case open:
		if time.Since(cb.openedAt) < cb.openDuration {
			return false
		}
		cb.state = halfOpen
		cb.probeInFlight = true
		return true
	case halfOpen:
		return false // only the in-flight probe may run
	default:
		return true
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutive = 0
	cb.state = closed
	cb.probeInFlight = false
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probeInFlight = false
	cb.consecutive++
	if cb.state == halfOpen || cb.consecutive >= cb.failureThreshold {
		cb.state = open
		cb.openedAt = time.Now()
		cb.consecutive = 0
	}
}

// Err returns the sentinel error to hand back when Allow() is false.
func (cb *CircuitBreaker) Err() error {
	return errs.New(errs.CircuitOpen, "agent circuit breaker open")
}

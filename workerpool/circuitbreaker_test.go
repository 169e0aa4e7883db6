package workerpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerStartsClosed(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	assert.True(t, cb.Allow())
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	cb.RecordFailure()
	cb.RecordFailure()
	assert.True(t, cb.Allow(), "still below threshold")
	cb.RecordFailure()
	assert.False(t, cb.Allow(), "threshold reached, breaker should be open")
}

func TestCircuitBreakerSuccessResetsConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	assert.True(t, cb.Allow(), "reset should mean we haven't hit threshold yet")
}

func TestCircuitBreakerHalfOpenAfterCooldown(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)
	cb.RecordFailure()
	assert.False(t, cb.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, cb.Allow(), "cooldown elapsed, probe should be allowed")
	// a second concurrent caller must not also get through as a probe
	assert.False(t, cb.Allow())
}

func TestCircuitBreakerProbeFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)
	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	assert.True(t, cb.Allow()) // probe allowed
	cb.RecordFailure()         // probe fails
	assert.False(t, cb.Allow())
}

func TestCircuitBreakerProbeSuccessCloses(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)
	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	assert.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.True(t, cb.Allow())
}

func TestCircuitBreakerErrKind(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	err := cb.Err()
	require := assert.New(t)
	require.ErrorContains(err, "circuit")
}

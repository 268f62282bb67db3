package llm

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(threshold int, timeout time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(threshold, timeout)
	cb.now = clock.Now
	return cb, clock
}

func TestCircuitBreaker_ClosedByDefault(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)
	if cb.State() != CircuitClosed {
		t.Fatal("expected closed state by default")
	}
	if !cb.Allow() {
		t.Fatal("expected allow in closed state")
	}
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != CircuitClosed {
		t.Fatal("should still be closed after 2 failures")
	}
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != CircuitClosed {
		t.Fatal("a success should reset the failure count")
	}

	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Fatal("should be open after 3 consecutive failures")
	}
	if cb.Allow() {
		t.Fatal("should reject calls while open")
	}
}

func TestCircuitBreaker_SingleProbeAfterRecoveryTimeout(t *testing.T) {
	cb, clock := newTestBreaker(1, 30*time.Second)
	cb.RecordFailure()

	clock.Advance(29 * time.Second)
	if cb.Allow() {
		t.Fatal("should stay open before the recovery timeout")
	}

	clock.Advance(time.Second)
	if !cb.Allow() {
		t.Fatal("should allow a probe after the recovery timeout")
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half_open, got %s", cb.State())
	}
	if cb.Allow() {
		t.Fatal("only one probe may be outstanding")
	}

	cb.RecordSuccess()
	if cb.State() != CircuitClosed {
		t.Fatalf("successful probe should close the circuit, got %s", cb.State())
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb, clock := newTestBreaker(2, 10*time.Second)
	cb.RecordFailure()
	cb.RecordFailure()

	clock.Advance(10 * time.Second)
	if !cb.Allow() {
		t.Fatal("expected probe")
	}
	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Fatalf("failed probe should re-open, got %s", cb.State())
	}
	if cb.Allow() {
		t.Fatal("re-opened circuit should wait a full recovery timeout")
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Hour)
	cb.RecordFailure()
	cb.Reset()
	if cb.State() != CircuitClosed || !cb.Allow() {
		t.Fatal("reset should close the circuit")
	}
}

func TestCircuitState_String(t *testing.T) {
	tests := map[CircuitState]string{
		CircuitClosed:    "closed",
		CircuitOpen:      "open",
		CircuitHalfOpen:  "half_open",
		CircuitState(42): "unknown",
	}
	for state, want := range tests {
		if state.String() != want {
			t.Errorf("%d: expected %q, got %q", state, want, state.String())
		}
	}
}

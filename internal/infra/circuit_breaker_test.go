package infra

import (
	"testing"
	"time"
)

func testBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *time.Time) {
	cb := NewCircuitBreaker(cfg)
	now := time.Date(2025, 12, 4, 15, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreaker_ClosedPassesTraffic(t *testing.T) {
	cb, _ := testBreaker(DefaultCircuitBreakerConfig("poll"))

	if !cb.Allow() {
		t.Error("closed breaker should allow calls")
	}
	if cb.State() != BreakerClosed {
		t.Errorf("state = %s, want closed", cb.State())
	}
}

func TestCircuitBreaker_OpensAtFailureThreshold(t *testing.T) {
	cb, _ := testBreaker(CircuitBreakerConfig{
		Name: "poll", FailureThreshold: 3, SuccessThreshold: 2, Cooldown: time.Minute,
	})

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != BreakerClosed {
		t.Fatal("should stay closed below the threshold")
	}

	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Fatalf("state = %s, want open after 3 failures", cb.State())
	}
	if cb.Allow() {
		t.Error("open breaker should reject calls")
	}
}

func TestCircuitBreaker_SuccessResetsFailureStreak(t *testing.T) {
	cb, _ := testBreaker(CircuitBreakerConfig{
		Name: "poll", FailureThreshold: 2, SuccessThreshold: 1, Cooldown: time.Minute,
	})

	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	if cb.State() != BreakerClosed {
		t.Error("non-consecutive failures should not open the breaker")
	}
}

func TestCircuitBreaker_ProbesAfterCooldown(t *testing.T) {
	cb, now := testBreaker(CircuitBreakerConfig{
		Name: "poll", FailureThreshold: 2, SuccessThreshold: 1, Cooldown: 30 * time.Second,
	})

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.Allow() {
		t.Fatal("should reject inside the cooldown")
	}

	*now = now.Add(31 * time.Second)
	if !cb.Allow() {
		t.Fatal("should probe after the cooldown")
	}
	if cb.State() != BreakerHalfOpen {
		t.Errorf("state = %s, want half-open", cb.State())
	}
}

func TestCircuitBreaker_ClosesAfterProbeSuccesses(t *testing.T) {
	cb, now := testBreaker(CircuitBreakerConfig{
		Name: "poll", FailureThreshold: 2, SuccessThreshold: 2, Cooldown: 30 * time.Second,
	})

	cb.RecordFailure()
	cb.RecordFailure()
	*now = now.Add(time.Minute)
	cb.Allow()

	cb.RecordSuccess()
	if cb.State() != BreakerHalfOpen {
		t.Error("one probe success should not close the breaker")
	}
	cb.RecordSuccess()
	if cb.State() != BreakerClosed {
		t.Errorf("state = %s, want closed after 2 probe successes", cb.State())
	}
}

func TestCircuitBreaker_ProbeFailureReopens(t *testing.T) {
	cb, now := testBreaker(CircuitBreakerConfig{
		Name: "poll", FailureThreshold: 2, SuccessThreshold: 2, Cooldown: 30 * time.Second,
	})

	cb.RecordFailure()
	cb.RecordFailure()
	*now = now.Add(time.Minute)
	cb.Allow()

	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Fatalf("state = %s, want open after probe failure", cb.State())
	}
	if cb.Allow() {
		t.Error("reopened breaker should reject until the next cooldown")
	}
}

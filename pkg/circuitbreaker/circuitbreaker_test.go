package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestOpensAfterFailureThreshold(t *testing.T) {
	cb := NewCircuitBreaker(Config{
		FailureThreshold:    3,
		SuccessThreshold:    1,
		Timeout:             time.Minute,
		HalfOpenMaxRequests: 1,
	})

	for i := 0; i < 3; i++ {
		if err := cb.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("attempt %d: got %v", i, err)
		}
	}

	// The threshold failure itself trips the breaker; no extra request is
	// needed to observe the open state.
	if cb.GetState() != StateOpen {
		t.Fatalf("state after threshold failure = %v, want open", cb.GetState())
	}

	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.GetState())
	}
}

func TestHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(Config{
		FailureThreshold:    1,
		SuccessThreshold:    1,
		Timeout:             time.Millisecond,
		HalfOpenMaxRequests: 1,
	})

	if err := cb.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("got %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	// First call after the timeout is the probe; a success closes it.
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("breaker did not close: %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("state = %v, want closed", cb.GetState())
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(Config{
		FailureThreshold:    2,
		SuccessThreshold:    1,
		Timeout:             time.Minute,
		HalfOpenMaxRequests: 1,
	})

	_ = cb.Execute(func() error { return errBoom })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errBoom })

	if cb.GetState() != StateClosed {
		t.Fatalf("state = %v, want closed", cb.GetState())
	}
}

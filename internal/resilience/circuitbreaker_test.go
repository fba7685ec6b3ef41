package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("svc")
	cfg.FailThreshold = 2
	cfg.ResetTimeout = time.Hour
	cb := NewCircuitBreaker(cfg)

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), func(context.Context) error { return boom })
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected circuit open after threshold, got %v", cb.State())
	}

	err := cb.Execute(context.Background(), func(context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected circuit-open error while open")
	}
}

func TestCircuitBreakerClosesOnSuccessfulProbe(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("svc2")
	cfg.FailThreshold = 1
	cfg.ResetTimeout = 10 * time.Millisecond
	cfg.HalfOpenProbe = 1
	cb := NewCircuitBreaker(cfg)

	_ = cb.Execute(context.Background(), func(context.Context) error { return errors.New("boom") })
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %v", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	err := cb.Execute(context.Background(), func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("probe should succeed: %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %v", cb.State())
	}
}

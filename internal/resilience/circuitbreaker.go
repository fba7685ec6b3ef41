package resilience

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/flowforge/runtime/pkg/errors"
)

// CircuitState mirrors gobreaker's three states under the names used by
// this runtime's error taxonomy and logging.
type CircuitState int

const (
	StateClosed CircuitState = CircuitState(gobreaker.StateClosed)
	StateOpen   CircuitState = CircuitState(gobreaker.StateOpen)
	StateHalfOpen CircuitState = CircuitState(gobreaker.StateHalfOpen)
)

func (s CircuitState) String() string {
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

// CircuitBreakerConfig configures the Closed->Open->HalfOpen->{Closed,Open}
// transition thresholds.
type CircuitBreakerConfig struct {
	Name          string
	FailThreshold uint32
	ResetTimeout  time.Duration
	HalfOpenProbe uint32
	OnStateChange func(name string, from, to CircuitState)
}

func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:          name,
		FailThreshold: 5,
		ResetTimeout:  30 * time.Second,
		HalfOpenProbe: 1,
	}
}

// CircuitBreaker wraps gobreaker.CircuitBreaker[any], adapting its sentinel
// errors onto this runtime's closed error taxonomy.
type CircuitBreaker struct {
	name         string
	resetTimeout time.Duration
	gb           *gobreaker.CircuitBreaker[any]
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenProbe == 0 {
		cfg.HalfOpenProbe = 1
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenProbe,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailThreshold
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, CircuitState(from), CircuitState(to))
		}
	}

	return &CircuitBreaker{name: cfg.Name, resetTimeout: cfg.ResetTimeout, gb: gobreaker.NewCircuitBreaker[any](settings)}
}

func (cb *CircuitBreaker) State() CircuitState { return CircuitState(cb.gb.State()) }

func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs fn under circuit protection. gobreaker does not itself
// observe ctx; callers relying on cancellation should combine this with
// Timeout or check ctx.Err() inside fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	_, err := cb.gb.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	if err == nil {
		return nil
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return errors.CircuitOpen(cb.resetTimeout).WithDetails("service", cb.name)
	}
	return err
}

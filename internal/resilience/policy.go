package resilience

import (
	"context"
	"time"
)

// Policy is an immutable, shareable ordered composition of resilience
// layers: Timeout -> Bulkhead -> CircuitBreaker -> Retry -> RateLimiter ->
// operation. Each layer is optional; a nil layer is a
// pass-through. Construct via PolicyBuilder and never mutate afterward —
// a *Policy is safe to share across goroutines exactly like the
// sony/gobreaker and golang.org/x/time/rate types it wraps.
type Policy struct {
	service string

	timeoutEnabled  bool
	timeoutDuration time.Duration
	timeoutPreserve bool

	bulkhead        *Bulkhead
	bulkheadTimeout time.Duration

	breaker *CircuitBreaker

	retry       *RetryConfig
	rateLimiter RateLimiter

	metrics *Metrics
}

// PolicyBuilder assembles a Policy layer by layer.
type PolicyBuilder struct {
	p *Policy
}

func NewPolicyBuilder(service string) *PolicyBuilder {
	return &PolicyBuilder{p: &Policy{service: service}}
}

func (b *PolicyBuilder) WithTimeout(d time.Duration, preserveInnerError bool) *PolicyBuilder {
	b.p.timeoutEnabled = true
	b.p.timeoutDuration = d
	b.p.timeoutPreserve = preserveInnerError
	return b
}

func (b *PolicyBuilder) WithBulkhead(capacity int, acquireTimeout time.Duration) *PolicyBuilder {
	b.p.bulkhead = NewBulkhead(b.p.service, capacity)
	b.p.bulkheadTimeout = acquireTimeout
	return b
}

func (b *PolicyBuilder) WithCircuitBreaker(cfg CircuitBreakerConfig) *PolicyBuilder {
	if cfg.Name == "" {
		cfg.Name = b.p.service
	}
	b.p.breaker = NewCircuitBreaker(cfg)
	return b
}

func (b *PolicyBuilder) WithRetry(cfg RetryConfig) *PolicyBuilder {
	b.p.retry = &cfg
	return b
}

func (b *PolicyBuilder) WithRateLimiter(rl RateLimiter) *PolicyBuilder {
	b.p.rateLimiter = rl
	return b
}

func (b *PolicyBuilder) WithMetrics(m *Metrics) *PolicyBuilder {
	b.p.metrics = m
	return b
}

func (b *PolicyBuilder) Build() *Policy { return b.p }

// Execute runs fn through every configured layer in the documented order.
// Outermost is Timeout, innermost (closest to fn) is RateLimiter.
func (p *Policy) Execute(ctx context.Context, fn func(context.Context) error) error {
	op := fn

	if p.rateLimiter != nil {
		inner := op
		op = func(ctx context.Context) error {
			if err := p.rateLimiter.Wait(ctx); err != nil {
				if p.metrics != nil {
					p.metrics.RateLimitRejectsTotal.WithLabelValues(p.service, "configured").Inc()
				}
				return err
			}
			return inner(ctx)
		}
	}

	if p.retry != nil {
		inner := op
		cfg := *p.retry
		op = func(ctx context.Context) error {
			return Retry(ctx, cfg, inner)
		}
	}

	if p.breaker != nil {
		inner := op
		op = func(ctx context.Context) error {
			err := p.breaker.Execute(ctx, inner)
			if p.metrics != nil {
				p.metrics.CircuitStateGauge.WithLabelValues(p.service).Set(float64(p.breaker.State()))
			}
			return err
		}
	}

	if p.bulkhead != nil {
		inner := op
		op = func(ctx context.Context) error {
			err := p.bulkhead.Execute(ctx, p.bulkheadTimeout, inner)
			if p.metrics != nil {
				stats := p.bulkhead.Stats()
				p.metrics.BulkheadActiveGauge.WithLabelValues(p.service).Set(float64(stats.Active))
				if err != nil {
					p.metrics.BulkheadRejectsTotal.WithLabelValues(p.service).Inc()
				}
			}
			return err
		}
	}

	if p.timeoutEnabled {
		inner := op
		op = func(ctx context.Context) error {
			var err error
			if p.timeoutPreserve {
				err = TimeoutPreserve(ctx, p.timeoutDuration, p.service, inner)
			} else {
				err = TimeoutDiscard(ctx, p.timeoutDuration, p.service, inner)
			}
			if err != nil && p.metrics != nil {
				p.metrics.TimeoutsTotal.WithLabelValues(p.service).Inc()
			}
			return err
		}
	}

	return op(ctx)
}

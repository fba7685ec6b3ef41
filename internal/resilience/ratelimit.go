package resilience

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/flowforge/runtime/pkg/errors"
)

// Clamp bounds for rate-limiter parameters: capacity and rate are clamped
// into a safe range rather than rejected outright, and the clamp is
// reported to the ClampObserver passed to the constructor (if non-nil) so
// callers can log/alert on it.
const (
	minCapacity = 1
	maxCapacity = 1_000_000
	minRate     = 0.01
	maxRate     = 100_000.0
)

// ClampObserver is notified whenever a rate-limiter parameter is clamped.
type ClampObserver func(parameter string, requested, applied float64)

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampCapacity(requested int, observer ClampObserver, param string) int {
	applied := int(clamp(float64(requested), minCapacity, maxCapacity))
	if applied != requested && observer != nil {
		observer(param, float64(requested), float64(applied))
	}
	return applied
}

func clampRate(requested float64, observer ClampObserver, param string) float64 {
	applied := clamp(requested, minRate, maxRate)
	if applied != requested && observer != nil {
		observer(param, requested, applied)
	}
	return applied
}

// RateLimiter is the common contract satisfied by all four algorithms.
type RateLimiter interface {
	// Allow reports whether an event may proceed now, consuming capacity
	// if so.
	Allow() bool
	// Wait blocks until an event may proceed or ctx is done.
	Wait(ctx context.Context) error
}

// ---------------------------------------------------------------------
// Token bucket, backed by golang.org/x/time/rate.
// ---------------------------------------------------------------------

type TokenBucket struct {
	limiter *rate.Limiter
}

func NewTokenBucket(capacity int, refillPerSecond float64, observer ClampObserver) *TokenBucket {
	capacity = clampCapacity(capacity, observer, "token_bucket.capacity")
	refillPerSecond = clampRate(refillPerSecond, observer, "token_bucket.rate")
	return &TokenBucket{limiter: rate.NewLimiter(rate.Limit(refillPerSecond), capacity)}
}

func (t *TokenBucket) Allow() bool { return t.limiter.Allow() }

func (t *TokenBucket) Wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return errors.RateLimitExceeded(0).WithDetails("cause", err.Error())
	}
	return nil
}

// ---------------------------------------------------------------------
// Leaky bucket.
// ---------------------------------------------------------------------

type LeakyBucket struct {
	mu       sync.Mutex
	capacity float64
	leakRate float64 // units/sec
	level    float64
	lastLeak time.Time
}

func NewLeakyBucket(capacity int, leakPerSecond float64, observer ClampObserver) *LeakyBucket {
	c := clampCapacity(capacity, observer, "leaky_bucket.capacity")
	r := clampRate(leakPerSecond, observer, "leaky_bucket.rate")
	return &LeakyBucket{capacity: float64(c), leakRate: r, lastLeak: time.Now()}
}

func (l *LeakyBucket) leak(now time.Time) {
	elapsed := now.Sub(l.lastLeak).Seconds()
	if elapsed <= 0 {
		return
	}
	l.level -= elapsed * l.leakRate
	if l.level < 0 {
		l.level = 0
	}
	l.lastLeak = now
}

func (l *LeakyBucket) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	l.leak(now)
	if l.level+1 > l.capacity {
		return false
	}
	l.level++
	return true
}

func (l *LeakyBucket) Wait(ctx context.Context) error {
	if l.Allow() {
		return nil
	}
	retryAfter := time.Duration(1.0/l.leakRate*1000) * time.Millisecond
	select {
	case <-time.After(retryAfter):
		if l.Allow() {
			return nil
		}
		return errors.RateLimitExceeded(retryAfter)
	case <-ctx.Done():
		return errors.Cancelled()
	}
}

// ---------------------------------------------------------------------
// Sliding window.
// ---------------------------------------------------------------------

type SlidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	events *list.List // of time.Time, oldest first
}

func NewSlidingWindow(limit int, window time.Duration, observer ClampObserver) *SlidingWindow {
	l := clampCapacity(limit, observer, "sliding_window.limit")
	return &SlidingWindow{limit: l, window: window, events: list.New()}
}

func (s *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-s.window)
	for e := s.events.Front(); e != nil; {
		next := e.Next()
		if e.Value.(time.Time).Before(cutoff) {
			s.events.Remove(e)
		} else {
			break
		}
		e = next
	}
}

func (s *SlidingWindow) Allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.prune(now)
	if s.events.Len() >= s.limit {
		return false
	}
	s.events.PushBack(now)
	return true
}

func (s *SlidingWindow) Wait(ctx context.Context) error {
	if s.Allow() {
		return nil
	}
	s.mu.Lock()
	var retryAfter time.Duration
	if front := s.events.Front(); front != nil {
		retryAfter = s.window - time.Since(front.Value.(time.Time))
	}
	s.mu.Unlock()
	if retryAfter < 0 {
		retryAfter = 0
	}
	select {
	case <-time.After(retryAfter):
		if s.Allow() {
			return nil
		}
		return errors.RateLimitExceeded(retryAfter)
	case <-ctx.Done():
		return errors.Cancelled()
	}
}

// ---------------------------------------------------------------------
// Adaptive: multiplicative-decrease on failure, additive-increase on
// sustained success, clamped to [rMin, rMax].
// ---------------------------------------------------------------------

type AdaptiveLimiter struct {
	mu                sync.Mutex
	current           float64
	rMin, rMax        float64
	increaseStep      float64
	decreaseFactor    float64
	successStreak     int
	successesToRaise  int
	bucket            *rate.Limiter
}

func NewAdaptiveLimiter(initial, rMin, rMax float64, observer ClampObserver) *AdaptiveLimiter {
	clamped := clamp(initial, rMin, rMax)
	if clamped != initial && observer != nil {
		observer("adaptive_limiter.initial", initial, clamped)
	}
	return &AdaptiveLimiter{
		current:          clamped,
		rMin:             rMin,
		rMax:             rMax,
		increaseStep:     rMin,
		decreaseFactor:   0.5,
		successesToRaise: 10,
		bucket:           rate.NewLimiter(rate.Limit(clamped), int(clamped)+1),
	}
}

func (a *AdaptiveLimiter) Allow() bool { return a.bucket.Allow() }

func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	if err := a.bucket.Wait(ctx); err != nil {
		return errors.RateLimitExceeded(0).WithDetails("cause", err.Error())
	}
	return nil
}

// OnSuccess records a successful call; after successesToRaise consecutive
// successes the rate increases additively, clamped to rMax.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.successStreak++
	if a.successStreak >= a.successesToRaise {
		a.successStreak = 0
		a.current = clamp(a.current+a.increaseStep, a.rMin, a.rMax)
		a.bucket.SetLimit(rate.Limit(a.current))
	}
}

// OnFailure records a failed call, applying multiplicative decrease
// immediately, clamped to rMin.
func (a *AdaptiveLimiter) OnFailure() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.successStreak = 0
	a.current = clamp(a.current*a.decreaseFactor, a.rMin, a.rMax)
	a.bucket.SetLimit(rate.Limit(a.current))
}

func (a *AdaptiveLimiter) CurrentRate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

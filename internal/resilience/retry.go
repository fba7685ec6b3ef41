package resilience

import (
	"context"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/flowforge/runtime/pkg/errors"
)

// BackoffKind selects the delay schedule for RetryConfig: fixed d,
// exponential base·m^n capped at cap, or linear base + step·n.
type BackoffKind int

const (
	BackoffFixed BackoffKind = iota
	BackoffExponential
	BackoffLinear
)

// Jitter selects how much randomness is added to a computed delay.
type Jitter int

const (
	JitterNone Jitter = iota
	JitterFull
	JitterEqual
	JitterDecorrelated
)

// RetryCondition classifies an error as retryable or terminal. A nil
// condition defaults to errors.KindOf(err).Retryable().
type RetryCondition func(err error) bool

// RetryConfig configures Retry.
type RetryConfig struct {
	MaxAttempts int
	Kind        BackoffKind
	Base        time.Duration
	Multiplier  float64 // exponential
	Step        time.Duration // linear
	Cap         time.Duration
	Jitter      Jitter
	Condition   RetryCondition
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Kind:        BackoffExponential,
		Base:        100 * time.Millisecond,
		Multiplier:  2.0,
		Cap:         10 * time.Second,
		Jitter:      JitterFull,
	}
}

func defaultCondition(err error) bool {
	return errors.KindOf(err).Retryable()
}

// delayForAttempt computes the non-jittered base delay for the n-th retry
// (n starting at 0 for the first retry after the initial attempt).
func delayForAttempt(cfg RetryConfig, n int) time.Duration {
	var d time.Duration
	switch cfg.Kind {
	case BackoffFixed:
		d = cfg.Base
	case BackoffLinear:
		d = cfg.Base + time.Duration(n)*cfg.Step
	case BackoffExponential:
		fallthrough
	default:
		mult := cfg.Multiplier
		if mult <= 0 {
			mult = 2.0
		}
		scale := 1.0
		for i := 0; i < n; i++ {
			scale *= mult
		}
		d = time.Duration(float64(cfg.Base) * scale)
	}
	if cfg.Cap > 0 && d > cfg.Cap {
		d = cfg.Cap
	}
	if d < 0 {
		d = 0
	}
	return d
}

// applyJitter applies the configured Jitter policy to a base delay. prev is
// the previously-applied (already jittered) delay, used by Decorrelated.
func applyJitter(cfg RetryConfig, base, prev time.Duration, rng *rand.Rand) time.Duration {
	switch cfg.Jitter {
	case JitterNone:
		return base
	case JitterFull:
		if base <= 0 {
			return 0
		}
		return time.Duration(rng.Int63n(int64(base) + 1))
	case JitterEqual:
		half := base / 2
		if base-half <= 0 {
			return half
		}
		return half + time.Duration(rng.Int63n(int64(base-half)+1))
	case JitterDecorrelated:
		low := cfg.Base
		high := prev * 3
		if high < low {
			high = low
		}
		if cfg.Cap > 0 && high > cfg.Cap {
			high = cfg.Cap
		}
		if high <= low {
			return low
		}
		return low + time.Duration(rng.Int63n(int64(high-low)+1))
	default:
		return base
	}
}

// Retry executes fn up to cfg.MaxAttempts times, honoring cfg.Condition to
// short-circuit on terminal errors and ctx cancellation to abort waiting.
// It is hand-rolled rather than delegating directly to backoff.Retry so
// that the three named jitter policies (Full/Equal/Decorrelated) and the
// linear schedule are expressible. RetryWithLibraryBackoff is the separate
// entry point that delegates to cenkalti/backoff/v4's exponential backoff,
// whose default randomization factor applies the library's own jitter.
func Retry(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	condition := cfg.Condition
	if condition == nil {
		condition = defaultCondition
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	var prevDelay time.Duration
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return errors.Cancelled()
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !condition(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		base := delayForAttempt(cfg, attempt)
		delay := applyJitter(cfg, base, prevDelay, rng)
		prevDelay = delay

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}

// RetryWithLibraryBackoff executes fn using cenkalti/backoff/v4's
// exponential backoff directly, with the library's default multiplier and
// randomization factor. Its elapsed-time limit is disabled; the number of
// attempts is bounded by maxAttempts instead.
func RetryWithLibraryBackoff(ctx context.Context, maxAttempts int, base, cap time.Duration, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = base
	bo.MaxInterval = cap
	bo.MaxElapsedTime = 0

	maxRetries := uint64(0)
	if maxAttempts > 1 {
		maxRetries = uint64(maxAttempts - 1)
	}
	withMax := backoff.WithMaxRetries(bo, maxRetries)
	withCtx := backoff.WithContext(withMax, ctx)
	return backoff.Retry(fn, withCtx)
}

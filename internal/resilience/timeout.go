package resilience

import (
	"context"
	"time"

	"github.com/flowforge/runtime/pkg/errors"
)

// TimeoutDiscard runs fn with a deadline of d. If fn has not returned when
// the deadline elapses, a Timeout error is returned and fn's eventual
// result (success or error) is discarded.
func TimeoutDiscard(ctx context.Context, d time.Duration, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errors.Timeout(op)
	}
}

// TimeoutPreserve runs fn with a deadline of d. Unlike TimeoutDiscard, a
// result that arrives "at the same instant" as the deadline (a race the
// select statement resolves pseudo-randomly when both channels are ready)
// prefers fn's own error over the generic Timeout classification, so an
// operation that fails just before its deadline reports its own error
// rather than being misclassified as a timeout.
func TimeoutPreserve(ctx context.Context, d time.Duration, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		select {
		case err := <-done:
			return err
		default:
			return errors.Timeout(op)
		}
	}
}

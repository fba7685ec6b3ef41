package resilience

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/flowforge/runtime/pkg/errors"
)

// Bulkhead is a fixed-capacity semaphore bounding concurrent operations.
type Bulkhead struct {
	name     string
	capacity int
	permits  chan struct{}
	active   atomic.Int64
}

func NewBulkhead(name string, capacity int) *Bulkhead {
	if capacity <= 0 {
		capacity = 1
	}
	return &Bulkhead{
		name:     name,
		capacity: capacity,
		permits:  make(chan struct{}, capacity),
	}
}

// Acquire blocks until a permit is free or timeout elapses (0 means wait
// indefinitely, bounded only by ctx).
func (b *Bulkhead) Acquire(ctx context.Context, timeout time.Duration) (func(), error) {
	var cancel context.CancelFunc
	acquireCtx := ctx
	if timeout > 0 {
		acquireCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case b.permits <- struct{}{}:
		b.active.Add(1)
		released := false
		return func() {
			if released {
				return
			}
			released = true
			b.active.Add(-1)
			<-b.permits
		}, nil
	case <-acquireCtx.Done():
		return func() {}, errors.PoolExhausted(b.name)
	}
}

// Execute wraps Acquire/release around fn.
func (b *Bulkhead) Execute(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	release, err := b.Acquire(ctx, timeout)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// BulkheadStats reports a Bulkhead's current occupancy.
type BulkheadStats struct {
	MaxConcurrency int
	Active         int
	Available      int
	AtCapacity     bool
}

func (b *Bulkhead) Stats() BulkheadStats {
	active := int(b.active.Load())
	return BulkheadStats{
		MaxConcurrency: b.capacity,
		Active:         active,
		Available:      b.capacity - active,
		AtCapacity:     active >= b.capacity,
	}
}

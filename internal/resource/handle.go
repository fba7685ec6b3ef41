package resource

import (
	"context"
	"sync"
)

// Handle is an opaque, move-only reference to a checked-out instance. Go
// has no compile-time move semantics, so non-cloneability is enforced by
// convention (Handle carries no exported copy constructor) and returning
// the instance on drop is modeled as an explicit, idempotent Release call
// rather than an implicit destructor. Callers must not retain or use a
// Handle after calling Release.
type Handle struct {
	pool    *Pool
	tracked *trackedInstance
	once    sync.Once
}

// Instance returns the checked-out value. Providers type-assert it to
// their concrete connection/client type.
func (h *Handle) Instance() Instance {
	return h.tracked.instance
}

// Generation returns the instance's creation generation, useful for
// detecting whether a cached reference to the instance has gone stale.
func (h *Handle) Generation() uint64 {
	return h.tracked.generation
}

// MarkUnhealthy flags the instance as unhealthy so Release destroys it
// instead of returning it to the idle queue, even if it has not exceeded
// its lifetime.
func (h *Handle) MarkUnhealthy() {
	h.tracked.health = Unhealthy
}

// Release returns the instance to its pool (or destroys it, if unhealthy
// or past MaxLifetime). Safe to call more than once; only the first call
// has effect.
func (h *Handle) Release(ctx context.Context) {
	h.once.Do(func() {
		h.pool.release(ctx, h.tracked, h.tracked.health != Unhealthy)
	})
}

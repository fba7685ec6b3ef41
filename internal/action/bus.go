package action

import (
	"context"
	"sync"
	"time"
)

// EventKind names a node lifecycle event published on the bus.
type EventKind string

const (
	NodeStarted   EventKind = "NodeStarted"
	NodeCompleted EventKind = "NodeCompleted"
	NodeFailed    EventKind = "NodeFailed"
)

// Event carries correlation ids alongside the lifecycle kind, per the
// execution step's "publish with correlation ids" requirement.
type Event struct {
	Kind        EventKind
	ExecutionID string
	WorkflowID  string
	NodeID      string
	ActionKey   string
	Err         error
	Duration    time.Duration
}

// EventHandler receives published events. Handlers must not block the
// bus indefinitely; Publish enforces a per-handler timeout.
type EventHandler func(ctx context.Context, evt Event)

// Bus is a minimal fan-out publisher for node lifecycle events, grounded
// on system/core/bus.go's PublishEvent: subscribers run concurrently,
// each bounded by a per-invocation timeout so one slow subscriber cannot
// stall the others.
type Bus struct {
	mu      sync.RWMutex
	subs    []EventHandler
	timeout time.Duration
}

const defaultBusTimeout = 5 * time.Second

func NewBus() *Bus {
	return &Bus{timeout: defaultBusTimeout}
}

// SetTimeout overrides the per-subscriber publish timeout.
func (b *Bus) SetTimeout(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d > 0 {
		b.timeout = d
	}
}

// Subscribe registers handler to receive every published event.
func (b *Bus) Subscribe(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, handler)
}

// Publish fans evt out to every subscriber concurrently, each wrapped in
// its own timeout derived from ctx so a hung subscriber cannot block
// Publish's caller past the bus's configured timeout.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	b.mu.RLock()
	subs := append([]EventHandler(nil), b.subs...)
	timeout := b.timeout
	b.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(h EventHandler) {
			defer wg.Done()
			subCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			h(subCtx, evt)
		}(sub)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
	}
}

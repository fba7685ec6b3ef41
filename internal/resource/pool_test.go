package resource

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeInstance struct {
	id int
}

type fakeProvider struct {
	mu          sync.Mutex
	nextID      int
	createErr   error
	health      HealthStatus
	createCalls atomic.Int32
	cleanups    atomic.Int32
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{health: Healthy}
}

func (f *fakeProvider) ID() string { return "fake" }

func (f *fakeProvider) Create(ctx context.Context, cfg Config) (Instance, error) {
	f.createCalls.Add(1)
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.mu.Unlock()
	return &fakeInstance{id: id}, nil
}

func (f *fakeProvider) HealthCheck(ctx context.Context, inst Instance) HealthStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.health
}

func (f *fakeProvider) Cleanup(ctx context.Context, inst Instance) error {
	f.cleanups.Add(1)
	return nil
}

func TestPoolReusesIdleInstance(t *testing.T) {
	p := newFakeProvider()
	pool := NewPool("fake", Global, p, PoolConfig{MaxSize: 2}, Config{})

	h1, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	h1.Release(context.Background())

	h2, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	h2.Release(context.Background())

	if p.createCalls.Load() != 1 {
		t.Fatalf("expected exactly one Create call (instance reused from idle), got %d", p.createCalls.Load())
	}
}

func TestPoolEnforcesMaxSize(t *testing.T) {
	p := newFakeProvider()
	pool := NewPool("fake", Global, p, PoolConfig{MaxSize: 1, AcquireTimeout: 20 * time.Millisecond}, Config{})

	h1, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	_, err = pool.Acquire(context.Background())
	if err == nil {
		t.Fatal("expected PoolExhausted while the only slot is checked out")
	}

	h1.Release(context.Background())
	if _, err := pool.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire to succeed after release: %v", err)
	}
}

func TestPoolWakesWaiterOnIdleReturnInsteadOfTimingOut(t *testing.T) {
	p := newFakeProvider()
	pool := NewPool("fake", Global, p, PoolConfig{MaxSize: 1, AcquireTimeout: 2 * time.Second}, Config{})

	h1, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	waiterDone := make(chan error, 1)
	start := time.Now()
	go func() {
		_, err := pool.Acquire(context.Background())
		waiterDone <- err
	}()

	// Give the waiter time to park in the bulkhead, then release the only
	// checked-out instance back to idle; the waiter must be woken by that
	// release rather than waiting out the full AcquireTimeout.
	time.Sleep(20 * time.Millisecond)
	h1.Release(context.Background())

	select {
	case err := <-waiterDone:
		if err != nil {
			t.Fatalf("waiter Acquire failed: %v", err)
		}
		if elapsed := time.Since(start); elapsed >= pool.cfg.AcquireTimeout {
			t.Fatalf("waiter took %v, should have been woken well before AcquireTimeout", elapsed)
		}
		if p.createCalls.Load() != 1 {
			t.Fatalf("createCalls = %d, want 1 (waiter should reuse the released idle instance)", p.createCalls.Load())
		}
	case <-time.After(pool.cfg.AcquireTimeout + time.Second):
		t.Fatal("waiter never returned")
	}
}

func TestPoolDestroysUnhealthyInstanceOnRelease(t *testing.T) {
	p := newFakeProvider()
	pool := NewPool("fake", Global, p, PoolConfig{MaxSize: 2}, Config{})

	h, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	h.MarkUnhealthy()
	h.Release(context.Background())

	if p.cleanups.Load() != 1 {
		t.Fatalf("expected unhealthy instance to be cleaned up, got %d cleanups", p.cleanups.Load())
	}
	stats := pool.Stats()
	if stats.Idle != 0 {
		t.Fatalf("expected no idle instances after destroying the unhealthy one, got %d", stats.Idle)
	}
}

func TestPoolDiscardsExpiredIdleInstanceOnAcquire(t *testing.T) {
	p := newFakeProvider()
	pool := NewPool("fake", Global, p, PoolConfig{MaxSize: 2, MaxLifetime: time.Millisecond}, Config{})

	h, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	h.Release(context.Background())

	time.Sleep(5 * time.Millisecond)

	if _, err := pool.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	if p.createCalls.Load() != 2 {
		t.Fatalf("expected the expired idle instance to be discarded and a new one created, got %d creates", p.createCalls.Load())
	}
}

func TestPoolHealthCheckLoopDiscardsUnhealthyIdleInstances(t *testing.T) {
	p := newFakeProvider()
	pool := NewPool("fake", Global, p, PoolConfig{MaxSize: 2, HealthCheckInterval: 5 * time.Millisecond}, Config{})

	h, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	h.Release(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	p.mu.Lock()
	p.health = Unhealthy
	p.mu.Unlock()

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if pool.Stats().Idle == 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if pool.Stats().Idle != 0 {
		t.Fatal("expected background health check to discard the now-unhealthy idle instance")
	}
	if pool.Stats().CheckedOut != 0 {
		t.Fatal("in-use instances must not be disturbed by the health loop; nothing was checked out here")
	}
}

func TestPoolShutdownDrainsIdleInstances(t *testing.T) {
	p := newFakeProvider()
	pool := NewPool("fake", Global, p, PoolConfig{MaxSize: 2}, Config{})

	h, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	h.Release(context.Background())

	if err := pool.Shutdown(context.Background(), time.Second); err != nil {
		t.Fatal(err)
	}
	if p.cleanups.Load() != 1 {
		t.Fatalf("expected shutdown to clean up the idle instance, got %d cleanups", p.cleanups.Load())
	}
}

func TestPoolShutdownWaitsForInFlightHandles(t *testing.T) {
	p := newFakeProvider()
	pool := NewPool("fake", Global, p, PoolConfig{MaxSize: 1}, Config{})

	h, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		h.Release(context.Background())
	}()

	start := time.Now()
	if err := pool.Shutdown(context.Background(), time.Second); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Fatal("expected Shutdown to wait for the in-flight handle instead of returning immediately")
	}
}

package resource

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/flowforge/runtime/internal/credential"
	"github.com/flowforge/runtime/internal/resilience"
	"github.com/flowforge/runtime/pkg/errors"
)

// PoolConfig bounds a single pool's size and lifetimes. All sizes are
// bounded; zero HealthCheckInterval disables the background health loop.
type PoolConfig struct {
	MinSize             int
	MaxSize             int
	AcquireTimeout      time.Duration
	IdleTimeout         time.Duration
	MaxLifetime         time.Duration
	HealthCheckInterval time.Duration
}

func (c PoolConfig) normalized() PoolConfig {
	if c.MaxSize <= 0 {
		c.MaxSize = 1
	}
	if c.MinSize < 0 {
		c.MinSize = 0
	}
	if c.MinSize > c.MaxSize {
		c.MinSize = c.MaxSize
	}
	return c
}

// Pool is a per-(provider, scope) bounded set of instances: a mutex-guarded
// idle slice plus a background health-check ticker.
type Pool struct {
	name     string
	scope    Scope
	provider Resource
	cfg      PoolConfig
	rcfg     Config

	mu         sync.Mutex
	idle       []*trackedInstance
	checkedOut int
	failedCnt  int
	nextGen    uint64
	draining   bool

	slots *resilience.Bulkhead

	credentials *credential.Manager

	// idleSignal is closed and replaced every time a healthy instance is
	// returned to the idle queue, waking any Acquire call parked waiting
	// on a bulkhead slot so it can re-check the idle queue instead of
	// timing out with one sitting unused.
	idleSignal chan struct{}

	stopCh   chan struct{}
	stopOnce sync.Once
}

// BindCredentials wires a credential manager into this pool's create
// path: each new instance fetches a fresh token for rcfg.CredentialID and
// substitutes {token}/{password} into the connection string before Create.
func (p *Pool) BindCredentials(mgr *credential.Manager) {
	p.credentials = mgr
}

// NewPool constructs a pool for provider under scope, bound by cfg and
// ready to substitute rcfg's connection template when creating instances.
func NewPool(name string, scope Scope, provider Resource, cfg PoolConfig, rcfg Config) *Pool {
	cfg = cfg.normalized()
	return &Pool{
		name:     name,
		scope:    scope,
		provider: provider,
		cfg:      cfg,
		rcfg:     rcfg,
		slots:      resilience.NewBulkhead(name+"/"+string(scope), cfg.MaxSize),
		idleSignal: make(chan struct{}),
		stopCh:     make(chan struct{}),
	}
}

// Start begins the background health-check loop, if configured.
func (p *Pool) Start(ctx context.Context) {
	if p.cfg.HealthCheckInterval <= 0 {
		return
	}
	go p.healthCheckLoop(ctx)
}

func (p *Pool) healthCheckLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.checkIdleHealth(ctx)
		}
	}
}

// checkIdleHealth runs HealthCheck against every idle instance. Instances
// that report Unhealthy are discarded; in-use instances are untouched.
func (p *Pool) checkIdleHealth(ctx context.Context) {
	p.mu.Lock()
	candidates := make([]*trackedInstance, len(p.idle))
	copy(candidates, p.idle)
	p.mu.Unlock()

	var stale []*trackedInstance
	for _, inst := range candidates {
		if p.provider.HealthCheck(ctx, inst.instance) == Unhealthy {
			stale = append(stale, inst)
		}
	}
	if len(stale) == 0 {
		return
	}

	p.mu.Lock()
	kept := p.idle[:0:0]
	staleSet := make(map[*trackedInstance]bool, len(stale))
	for _, s := range stale {
		staleSet[s] = true
	}
	for _, inst := range p.idle {
		if !staleSet[inst] {
			kept = append(kept, inst)
		}
	}
	p.idle = kept
	p.mu.Unlock()

	for _, inst := range stale {
		_ = p.provider.Cleanup(ctx, inst.instance)
		inst.slotRelease()
	}
}

// Acquire pops a valid idle instance if one is available, else creates one
// (consuming a bulkhead slot), else waits on the slot semaphore up to
// AcquireTimeout. A waiter parked on the semaphore is woken early whenever
// another caller returns a healthy instance to the idle queue, so it can
// retry the idle pop instead of waiting out the full timeout with a usable
// instance sitting idle.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	for {
		if inst, ok := p.popValidIdle(ctx); ok {
			p.mu.Lock()
			p.checkedOut++
			p.mu.Unlock()
			return &Handle{pool: p, tracked: inst}, nil
		}

		p.mu.Lock()
		draining := p.draining
		p.mu.Unlock()
		if draining {
			return nil, errors.PoolExhausted(p.name)
		}

		release, woken, err := p.acquireSlotOrWait(ctx)
		if err != nil {
			p.mu.Lock()
			p.failedCnt++
			p.mu.Unlock()
			return nil, err
		}
		if woken {
			// An idle instance appeared while we were waiting; loop back
			// and pop it instead of creating a new one.
			continue
		}

		rcfg, err := p.resolvedConfig(ctx)
		if err != nil {
			release()
			p.mu.Lock()
			p.failedCnt++
			p.mu.Unlock()
			return nil, err
		}

		instance, err := p.provider.Create(ctx, rcfg)
		if err != nil {
			release()
			p.mu.Lock()
			p.failedCnt++
			p.mu.Unlock()
			return nil, errors.Internal("create resource instance", err)
		}

		p.mu.Lock()
		p.nextGen++
		gen := p.nextGen
		p.checkedOut++
		p.mu.Unlock()

		now := time.Now()
		tracked := &trackedInstance{
			instance:    instance,
			createdAt:   now,
			lastUsedAt:  now,
			generation:  gen,
			health:      Healthy,
			slotRelease: release,
		}
		return &Handle{pool: p, tracked: tracked}, nil
	}
}

// acquireSlotOrWait races a bulkhead slot acquisition against the pool's
// idle signal. woken is true when an idle instance became available first,
// in which case release is nil and the slot attempt has been abandoned.
func (p *Pool) acquireSlotOrWait(ctx context.Context) (release func(), woken bool, err error) {
	p.mu.Lock()
	signal := p.idleSignal
	p.mu.Unlock()

	slotCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type slotResult struct {
		release func()
		err     error
	}
	resultCh := make(chan slotResult, 1)
	go func() {
		r, e := p.slots.Acquire(slotCtx, p.cfg.AcquireTimeout)
		resultCh <- slotResult{release: r, err: e}
	}()

	select {
	case <-signal:
		cancel()
		if res := <-resultCh; res.err == nil {
			// Won the slot race right as an idle instance also appeared;
			// give the slot back since we're about to reuse the idle one.
			res.release()
		}
		return nil, true, nil
	case res := <-resultCh:
		return res.release, false, res.err
	}
}

// resolvedConfig returns p.rcfg with a fresh credential token substituted
// into its connection string, if the pool is bound to a credential id.
func (p *Pool) resolvedConfig(ctx context.Context) (Config, error) {
	if p.credentials == nil || p.rcfg.CredentialID == "" {
		return p.rcfg, nil
	}
	token, err := p.credentials.GetToken(ctx, p.rcfg.CredentialID, credential.Context{Ctx: ctx})
	if err != nil {
		return Config{}, errors.Propagate("fetch credential for resource", err)
	}
	resolved := p.rcfg
	resolved.ConnectionString = substitutePlaceholders(p.rcfg.ConnectionString, string(token.Secret), string(token.Secret))
	return resolved, nil
}

// popValidIdle pops the most recently released idle instance that has not
// exceeded MaxLifetime and is not known Unhealthy, discarding any stale
// ones it encounters along the way.
func (p *Pool) popValidIdle(ctx context.Context) (*trackedInstance, bool) {
	for {
		p.mu.Lock()
		if len(p.idle) == 0 {
			p.mu.Unlock()
			return nil, false
		}
		last := len(p.idle) - 1
		inst := p.idle[last]
		p.idle = p.idle[:last]
		p.mu.Unlock()

		if inst.expired(p.cfg.MaxLifetime) || inst.health == Unhealthy {
			_ = p.provider.Cleanup(ctx, inst.instance)
			inst.slotRelease()
			continue
		}
		inst.lastUsedAt = time.Now()
		return inst, true
	}
}

// release is called by Handle.Release.
func (p *Pool) release(ctx context.Context, inst *trackedInstance, healthy bool) {
	p.mu.Lock()
	p.checkedOut--
	draining := p.draining
	p.mu.Unlock()

	if healthy && !inst.expired(p.cfg.MaxLifetime) && !draining {
		p.mu.Lock()
		p.idle = append(p.idle, inst)
		old := p.idleSignal
		p.idleSignal = make(chan struct{})
		p.mu.Unlock()
		close(old)
		return
	}

	_ = p.provider.Cleanup(ctx, inst.instance)
	inst.slotRelease()
}

// dropIdle discards every currently idle instance (used after a bound
// credential rotates, so stale-token connections are not handed out
// again). Checked-out instances are left alone.
func (p *Pool) dropIdle(ctx context.Context) {
	p.mu.Lock()
	stale := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, inst := range stale {
		_ = p.provider.Cleanup(ctx, inst.instance)
		inst.slotRelease()
	}
}

// Shutdown stops accepting new instance creation, waits (bounded by
// deadline) for in-flight handles to be released, then drains and cleans
// up every remaining idle instance.
func (p *Pool) Shutdown(ctx context.Context, deadline time.Duration) error {
	p.stopOnce.Do(func() { close(p.stopCh) })

	p.mu.Lock()
	p.draining = true
	p.mu.Unlock()

	deadlineCtx := ctx
	var cancel context.CancelFunc
	if deadline > 0 {
		deadlineCtx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		p.mu.Lock()
		done := p.checkedOut == 0
		p.mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadlineCtx.Done():
			goto drain
		case <-ticker.C:
		}
	}

drain:
	p.mu.Lock()
	remaining := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, inst := range remaining {
		_ = p.provider.Cleanup(ctx, inst.instance)
		inst.slotRelease()
	}
	return nil
}

// Stats reports the per-pool instance counters.
type Stats struct {
	Configured int
	Idle       int
	CheckedOut int
	Failed     int
	MaxSize    int
	MinSize    int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Configured: len(p.idle) + p.checkedOut,
		Idle:       len(p.idle),
		CheckedOut: p.checkedOut,
		Failed:     p.failedCnt,
		MaxSize:    p.cfg.MaxSize,
		MinSize:    p.cfg.MinSize,
	}
}

// substitutePlaceholders replaces {token} and {password} in the
// connection string template with secret material.
func substitutePlaceholders(template string, token, password string) string {
	r := strings.NewReplacer("{token}", token, "{password}", password)
	return r.Replace(template)
}

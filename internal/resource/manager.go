package resource

import (
	"context"
	"sync"
	"time"

	"github.com/flowforge/runtime/internal/credential"
	"github.com/flowforge/runtime/pkg/errors"
)

// Manager owns every Pool in the process, grouped by provider id and
// then by Scope, and resolves acquisitions across scopes via a
// ScopingStrategy.
type Manager struct {
	mu       sync.RWMutex
	strategy ScopingStrategy
	pools    map[string]map[Scope]*Pool
}

func NewManager(strategy ScopingStrategy) *Manager {
	return &Manager{strategy: strategy, pools: make(map[string]map[Scope]*Pool)}
}

// Register adds a pool for provider under scope and starts its
// background health-check loop. Registering the same (providerID, scope)
// pair again replaces the previous pool without shutting it down; callers
// that want a clean swap should Shutdown the old pool first.
func (m *Manager) Register(ctx context.Context, providerID string, scope Scope, provider Resource, cfg PoolConfig, rcfg Config) *Pool {
	pool := NewPool(providerID, scope, provider, cfg, rcfg)
	pool.Start(ctx)

	m.mu.Lock()
	if m.pools[providerID] == nil {
		m.pools[providerID] = make(map[Scope]*Pool)
	}
	m.pools[providerID][scope] = pool
	m.mu.Unlock()

	return pool
}

// BindCredentials wires a credential manager into every currently
// registered pool for providerID.
func (m *Manager) BindCredentials(providerID string, mgr *credential.Manager) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, pool := range m.pools[providerID] {
		pool.BindCredentials(mgr)
	}
}

// Acquire resolves the candidate pools for (providerID, requested) via
// the manager's ScopingStrategy and acquires from the first candidate
// that succeeds.
func (m *Manager) Acquire(ctx context.Context, providerID string, requested Scope) (*Handle, error) {
	m.mu.RLock()
	scoped, ok := m.pools[providerID]
	if !ok {
		m.mu.RUnlock()
		return nil, errors.NotFound("resource_provider", providerID)
	}
	configured := make([]Scope, 0, len(scoped))
	for s := range scoped {
		configured = append(configured, s)
	}
	candidates := m.strategy.Resolve(requested, configured)
	pools := make([]*Pool, 0, len(candidates))
	for _, s := range candidates {
		pools = append(pools, scoped[s])
	}
	m.mu.RUnlock()

	if len(pools) == 0 {
		return nil, errors.PoolExhausted(providerID)
	}

	var lastErr error
	for _, pool := range pools {
		handle, err := pool.Acquire(ctx)
		if err == nil {
			return handle, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// InvalidateCredential is the rotation handler hook: it forces every pool
// bound to credentialID to discard its idle instances
// (which were created with the now-superseded token), so the next
// Acquire recreates them with a fresh one. In-use instances finish out
// their current checkout untouched.
func (m *Manager) InvalidateCredential(ctx context.Context, credentialID string) {
	m.mu.RLock()
	var affected []*Pool
	for _, scoped := range m.pools {
		for _, pool := range scoped {
			if pool.rcfg.CredentialID == credentialID {
				affected = append(affected, pool)
			}
		}
	}
	m.mu.RUnlock()

	for _, pool := range affected {
		pool.dropIdle(ctx)
	}
}

// Shutdown shuts down every registered pool, bounding each pool's drain
// wait by deadline.
func (m *Manager) Shutdown(ctx context.Context, deadline time.Duration) error {
	m.mu.RLock()
	var all []*Pool
	for _, scoped := range m.pools {
		for _, pool := range scoped {
			all = append(all, pool)
		}
	}
	m.mu.RUnlock()

	var firstErr error
	for _, pool := range all {
		if err := pool.Shutdown(ctx, deadline); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats reports every registered pool's stats, keyed by "providerID@scope".
func (m *Manager) Stats() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Stats)
	for providerID, scoped := range m.pools {
		for scope, pool := range scoped {
			out[providerID+"@"+string(scope)] = pool.Stats()
		}
	}
	return out
}

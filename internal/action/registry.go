package action

import (
	"fmt"
	"sort"
	"sync"

	"github.com/flowforge/runtime/pkg/errors"
)

// Registry maps an action key to its registered Handler, generalized from
// ServiceEngine's services map in system/engine/invocable.go.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler under its own metadata key. Registering under
// an already-used key replaces the previous handler.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Metadata().Key] = h
}

// Unregister removes a handler by key.
func (r *Registry) Unregister(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, key)
}

// Lookup resolves a handler by action key.
func (r *Registry) Lookup(key string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[key]
	if !ok {
		return nil, errors.NotFound("action", key)
	}
	return h, nil
}

// Keys returns every registered action key, sorted for stable output.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Registry) String() string {
	return fmt.Sprintf("action.Registry{handlers=%d}", len(r.handlers))
}

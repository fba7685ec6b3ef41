// Package resource implements the scope-aware pooled-resource manager
// (database connections, HTTP clients, and other dependencies expensive
// enough to warrant reuse across workflow nodes), generalized from
// infrastructure/chain/rpcpool.go's endpoint pool into a provider-agnostic
// pool keyed by resource id and scope.
package resource

import (
	"context"
	"time"
)

// HealthStatus is the result of a Resource's health check.
type HealthStatus int

const (
	Healthy HealthStatus = iota
	Degraded
	Unhealthy
)

func (h HealthStatus) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Unhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Config is the provider-specific configuration handed to Create, already
// resolved for a particular scope (connection string template, credential
// id, tunables). Providers type-assert the fields they need out of Extra.
type Config struct {
	ConnectionString string
	CredentialID     string
	Extra            map[string]any
}

// Resource is the provider contract a concrete pooled dependency
// implements: a Postgres pool, an HTTP client pool, a Redis client, and so
// on. Health_check and Cleanup are optional in spirit (a Resource that
// never needs them can return Healthy unconditionally and a no-op
// Cleanup), but Go interfaces have no optional methods, so both are part
// of the contract.
type Resource interface {
	// ID names the provider, e.g. "postgres", "http".
	ID() string
	// Create constructs a new instance for the given (already credential-
	// substituted) config.
	Create(ctx context.Context, cfg Config) (Instance, error)
	// HealthCheck reports the instance's current health.
	HealthCheck(ctx context.Context, inst Instance) HealthStatus
	// Cleanup releases an instance's underlying resources (closing a
	// connection, and similar).
	Cleanup(ctx context.Context, inst Instance) error
}

// Instance is the opaque pooled value a Resource produces. Concrete
// providers wrap their real connection/client behind this interface;
// pool-tracked bookkeeping (created_at, generation, health) lives
// alongside it in trackedInstance, not on Instance itself.
type Instance interface{}

// trackedInstance is the pool's bookkeeping record for one Instance:
// creation time, last-used time, generation, and health.
type trackedInstance struct {
	instance   Instance
	createdAt  time.Time
	lastUsedAt time.Time
	generation uint64
	health     HealthStatus
	// slotRelease frees this instance's slot semaphore permit; called
	// exactly once, when the instance is actually destroyed (not when it
	// is merely returned to idle).
	slotRelease func()
}

func (t *trackedInstance) expired(maxLifetime time.Duration) bool {
	if maxLifetime <= 0 {
		return false
	}
	return time.Since(t.createdAt) >= maxLifetime
}

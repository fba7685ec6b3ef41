package sandbox

import (
	"context"
	"time"

	"github.com/flowforge/runtime/pkg/errors"
)

// SandboxedContext wraps the normal execution context together with the
// capability set granted to the current action invocation. It is the
// only way a handler running under isolation reaches outside its own
// input/output.
type SandboxedContext struct {
	Ctx    context.Context
	NodeID string
	Caps   CapabilitySet
}

func NewSandboxedContext(ctx context.Context, nodeID string, caps CapabilitySet) *SandboxedContext {
	return &SandboxedContext{Ctx: ctx, NodeID: nodeID, Caps: caps}
}

func (s *SandboxedContext) check(required Capability) error {
	if s.Caps.Satisfies(required) {
		return nil
	}
	return errors.SandboxViolation(required.Describe(), s.NodeID)
}

// CheckCredential verifies the context was granted access to credential id.
func (s *SandboxedContext) CheckCredential(id string) error {
	return s.check(CredentialCapability(id))
}

// CheckResource verifies the context was granted access to resource id.
func (s *SandboxedContext) CheckResource(id string) error {
	return s.check(ResourceCapability(id))
}

// CheckNetwork verifies the context was granted access to every given host.
func (s *SandboxedContext) CheckNetwork(hosts ...string) error {
	return s.check(NetworkCapability(hosts...))
}

// CheckFileSystem verifies the context was granted access to every given
// path with at least the requested write permission.
func (s *SandboxedContext) CheckFileSystem(readOnly bool, paths ...string) error {
	return s.check(FileSystemCapability(readOnly, paths...))
}

// CheckEnvironment verifies the context was granted access to every
// given environment key.
func (s *SandboxedContext) CheckEnvironment(keys ...string) error {
	return s.check(EnvironmentCapability(keys...))
}

// CheckMaxMemory verifies the context's memory grant covers bytes.
func (s *SandboxedContext) CheckMaxMemory(bytes int64) error {
	return s.check(MaxMemoryCapability(bytes))
}

// CheckMaxCpuTime verifies the context's CPU-time grant covers d.
func (s *SandboxedContext) CheckMaxCpuTime(d time.Duration) error {
	return s.check(MaxCpuTimeCapability(d))
}

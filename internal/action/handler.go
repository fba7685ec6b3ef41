// Package action implements the handler registry and execution step that
// dispatch a single workflow node to its action body, generalized from
// system/engine/invocable.go + bridge.go's fixed service-call bridge into
// a generic action runtime driven by a node's action key rather than a
// contract event.
package action

import (
	"context"

	"github.com/flowforge/runtime/internal/sandbox"
	"github.com/flowforge/runtime/internal/value"
)

// Classification names the role a handler plays in a workflow graph.
type Classification int

const (
	Process Classification = iota
	Source
	Sink
	Control
)

func (c Classification) String() string {
	switch c {
	case Process:
		return "process"
	case Source:
		return "source"
	case Sink:
		return "sink"
	case Control:
		return "control"
	default:
		return "unknown"
	}
}

// Metadata is what a handler declares about itself at registration time,
// consulted by the execution step before dispatch.
type Metadata struct {
	Key              string
	Name             string
	Description      string
	Classification   Classification
	Required         []sandbox.Capability
	Isolation        sandbox.IsolationLevel
	MaxOutputBytes   int
	ParamNames       []string
	TargetService    string // resilience policy lookup key; empty means no policy wrapping
}

// ActionContext is what every handler body receives alongside its input,
// per the execution step's construction contract. Sandbox is nil when the
// handler's declared isolation is sandbox.IsolationNone; handlers that
// want to perform their own dynamic capability check (for example a
// generic HTTP sink checking the actual destination host against its
// granted Network capability) do so through Sandbox.Check*, not by
// re-deriving a capability set themselves.
type ActionContext struct {
	ExecutionID string
	NodeID      string
	WorkflowID  string

	Sandbox *sandbox.SandboxedContext

	ResourceProvider   ResourceProvider
	CredentialProvider CredentialProvider
}

// ResourceProvider is the subset of the resource manager an action body
// may use; kept narrow so handlers cannot reach pool administration.
type ResourceProvider interface {
	Acquire(ctx context.Context, providerID string, scope string) (ResourceHandle, error)
}

// ResourceHandle is the subset of a resource handle exposed to handlers.
type ResourceHandle interface {
	Instance() any
	Release(ctx context.Context)
}

// CredentialProvider is the subset of the credential manager an action
// body may use to fetch tokens for outbound calls.
type CredentialProvider interface {
	GetToken(ctx context.Context, id string) (string, error)
}

// Handler is an action body. For a handler whose isolation is not
// sandbox.IsolationNone, Runner calls Execute from inside the sandbox
// runner with ActionContext.Sandbox set to the node's SandboxedContext;
// the ActionContext's resource and credential providers are set for every
// handler, isolated or not; see Runner.
type Handler interface {
	Metadata() Metadata
	Execute(ctx context.Context, actx ActionContext, input value.Value) (value.Value, error)
}

package sandbox

import (
	"context"

	"github.com/flowforge/runtime/internal/value"
	"github.com/flowforge/runtime/pkg/errors"
)

// IsolationLevel names how an action's handler is invoked. None is a
// deliberate, metadata-visible bypass reserved for trusted built-ins: the
// engine (C6) delivers the handler a raw context.Context directly and
// never constructs a SandboxedContext or calls through a SandboxRunner
// for it. Every other level routes through a SandboxRunner.
type IsolationLevel int

const (
	IsolationNone IsolationLevel = iota
	IsolationInProcess
	IsolationOutOfProcess
)

// ActionMetadata is the capability/isolation declaration a handler
// registers alongside itself, consulted by the engine before dispatch
// and by SandboxRunner.Execute during it.
type ActionMetadata struct {
	Required       []Capability
	Isolation      IsolationLevel
	MaxOutputBytes int
}

// HandlerFunc is the sandboxed form of an action body: it receives a
// SandboxedContext rather than a bare context.Context, so every capability
// it exercises is checked through one of SandboxedContext's Check<Kind>
// methods.
type HandlerFunc func(sctx *SandboxedContext, input value.Value) (value.Value, error)

// SandboxRunner executes a handler under a sandboxed context: verify
// required capabilities are granted, enforce resource limits, invoke,
// validate output size.
type SandboxRunner interface {
	Execute(ctx context.Context, nodeID string, meta ActionMetadata, granted CapabilitySet, input value.Value, handler HandlerFunc) (value.Value, error)
}

// InProcessRunner satisfies SandboxRunner without OS-level isolation: the
// handler runs in the same process on its own goroutine (Execute returns
// Cancelled as soon as ctx is done, without waiting for that goroutine to
// finish), with its capability checks backed
// by the real granted set and its output measured against
// MaxOutputBytes. An out-of-process variant (IsolationOutOfProcess) is an
// external collaborator — no in-repo implementation exists, since it
// would require a subprocess/IPC transport out of this module's scope.
type InProcessRunner struct{}

func NewInProcessRunner() *InProcessRunner { return &InProcessRunner{} }

func (r *InProcessRunner) Execute(ctx context.Context, nodeID string, meta ActionMetadata, granted CapabilitySet, input value.Value, handler HandlerFunc) (value.Value, error) {
	if offending, ok := granted.SatisfiesAll(meta.Required); !ok {
		return value.Null(), errors.SandboxViolation(offending.Describe(), nodeID)
	}

	sctx := NewSandboxedContext(ctx, nodeID, granted)

	done := make(chan struct{})
	var result value.Value
	var runErr error
	go func() {
		defer close(done)
		result, runErr = handler(sctx, input)
	}()

	select {
	case <-ctx.Done():
		return value.Null(), errors.Cancelled()
	case <-done:
	}
	if runErr != nil {
		return value.Null(), runErr
	}

	if meta.MaxOutputBytes > 0 {
		if encoded, err := result.MarshalJSON(); err == nil && len(encoded) > meta.MaxOutputBytes {
			return value.Null(), errors.LimitExceeded("output_bytes", meta.MaxOutputBytes)
		}
	}
	return result, nil
}

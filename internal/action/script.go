package action

import (
	"context"

	"github.com/flowforge/runtime/internal/sandbox"
	"github.com/flowforge/runtime/internal/value"
	"github.com/flowforge/runtime/pkg/errors"
)

// ScriptAction adapts a sandbox.ScriptHandler into a Handler, so a
// JavaScript action body can be registered in a Registry and dispatched
// by Runner exactly like a compiled Go handler: Runner already wraps
// every Handler's Execute in the sandbox's capability check and
// cancellation race when Isolation is not IsolationNone, so the script
// itself only needs to run once that closure invokes it.
type ScriptAction struct {
	meta   Metadata
	script sandbox.ScriptHandler
}

// NewScriptAction builds a scripted Handler. meta.Isolation should not be
// sandbox.IsolationNone — a script has no business running outside a
// SandboxedContext.
func NewScriptAction(meta Metadata, script sandbox.ScriptHandler) *ScriptAction {
	return &ScriptAction{meta: meta, script: script}
}

func (a *ScriptAction) Metadata() Metadata { return a.meta }

func (a *ScriptAction) Execute(ctx context.Context, actx ActionContext, input value.Value) (value.Value, error) {
	if actx.Sandbox == nil {
		return value.Null(), errors.Internal("scripted action requires a sandboxed context", nil)
	}
	return sandbox.WrapScript(a.script)(actx.Sandbox, input)
}

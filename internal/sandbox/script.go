package sandbox

import (
	"context"
	"fmt"

	"github.com/dop251/goja"

	"github.com/flowforge/runtime/internal/value"
	"github.com/flowforge/runtime/pkg/errors"
)

// ScriptHandler is an action body expressed as a JavaScript entry-point
// function rather than compiled Go.
type ScriptHandler struct {
	Script     string
	EntryPoint string
	Secrets    map[string]string
}

// WrapScript adapts a ScriptHandler into a HandlerFunc, so it can run
// through the same SandboxRunner capability-check and output-bound
// machinery as any compiled Go handler: ScriptRunner is a thin
// convenience over InProcessRunner, not a separate isolation mechanism.
// Every invocation gets a fresh goja.Runtime (isolation between calls,
// not a security boundary against the host process); script code never
// receives the SandboxedContext itself, only input/secrets/console
// globals, so it has no path to bypass the capability check already
// performed before this handler runs.
func WrapScript(sh ScriptHandler) HandlerFunc {
	return func(sctx *SandboxedContext, input value.Value) (value.Value, error) {
		vm := goja.New()
		logs := make([]string, 0)

		console := vm.NewObject()
		_ = console.Set("log", func(call goja.FunctionCall) goja.Value {
			for _, arg := range call.Arguments {
				logs = append(logs, arg.String())
			}
			return goja.Undefined()
		})
		_ = vm.Set("console", console)

		secretsObj := vm.NewObject()
		for k, v := range sh.Secrets {
			_ = secretsObj.Set(k, v)
		}
		_ = vm.Set("secrets", secretsObj)

		_ = vm.Set("input", vm.ToValue(input.ToInterface()))

		if _, err := vm.RunString(sh.Script); err != nil {
			return value.Null(), errors.Internal("compile script", err)
		}

		entry, ok := goja.AssertFunction(vm.Get(sh.EntryPoint))
		if !ok {
			return value.Null(), errors.Validation("entry_point", fmt.Sprintf("%q is not a function", sh.EntryPoint))
		}

		resultVal, err := entry(goja.Undefined(), vm.Get("input"))
		if err != nil {
			return value.Null(), errors.Internal("execute script", err)
		}

		out, err := value.FromInterface(resultVal.Export())
		if err != nil {
			return value.Null(), errors.Internal("decode script result", err)
		}
		return out, nil
	}
}

// ScriptRunner executes ScriptHandler bodies through an InProcessRunner,
// giving handlers an in-process, capability-checked JS execution path
// alongside compiled Go handlers.
type ScriptRunner struct {
	inner *InProcessRunner
}

func NewScriptRunner() *ScriptRunner {
	return &ScriptRunner{inner: NewInProcessRunner()}
}

func (r *ScriptRunner) ExecuteScript(ctx context.Context, nodeID string, meta ActionMetadata, granted CapabilitySet, sh ScriptHandler, input value.Value) (value.Value, error) {
	return r.inner.Execute(ctx, nodeID, meta, granted, input, WrapScript(sh))
}

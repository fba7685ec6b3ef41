// Package enginecore binds the action runtime, resource manager,
// credential manager, and sandbox runner into the workflow coordinator,
// generalized from system/core/engine.go's facade-over-subsystems style:
// Engine composes collaborators constructed elsewhere and exposes a
// narrow operation surface (here, ExecuteWorkflow) rather than growing
// its own copies of their logic.
package enginecore

import (
	"context"
	"time"

	"github.com/flowforge/runtime/internal/action"
	"github.com/flowforge/runtime/internal/credential"
	"github.com/flowforge/runtime/internal/resource"
	"github.com/flowforge/runtime/internal/sandbox"
	"github.com/flowforge/runtime/internal/value"
	"github.com/flowforge/runtime/pkg/errors"
)

// Engine is the coordinator: it holds the action registry, sandbox
// runner, resource manager, credential manager, and event bus, and
// drives a workflow graph through them node by node.
type Engine struct {
	Actions     *action.Registry
	Runner      *action.Runner
	Resources   *resource.Manager
	Credentials *credential.Manager
	Sandbox     sandbox.SandboxRunner
	Bus         *action.Bus
}

// Config wires an Engine's collaborators. Runner is typically built with
// action.NewRunner(action.RunnerConfig{Registry: Actions, ...}) so the two
// share the same registry and bus.
type Config struct {
	Actions     *action.Registry
	Runner      *action.Runner
	Resources   *resource.Manager
	Credentials *credential.Manager
	Sandbox     sandbox.SandboxRunner
	Bus         *action.Bus
}

func New(cfg Config) *Engine {
	return &Engine{
		Actions:     cfg.Actions,
		Runner:      cfg.Runner,
		Resources:   cfg.Resources,
		Credentials: cfg.Credentials,
		Sandbox:     cfg.Sandbox,
		Bus:         cfg.Bus,
	}
}

// ExecutionResult accumulates per-node outputs of a workflow run and is
// returned both on completion and on budget exhaustion, carrying whatever
// partial results were produced before the run stopped.
type ExecutionResult struct {
	Outputs        map[string]value.Value
	Errors         map[string]error
	Completed      bool
	BudgetExceeded bool
}

// ExecuteWorkflow drives graph to completion (or budget exhaustion),
// dispatching each node through the action runtime in topological order
// and propagating its output to downstream edges' input.
func (e *Engine) ExecuteWorkflow(ctx context.Context, executionID, workflowID string, graph Graph, input value.Value, budget ExecutionBudget) (ExecutionResult, error) {
	order, err := graph.topoOrder()
	if err != nil {
		return ExecutionResult{}, err
	}

	result := ExecutionResult{
		Outputs: make(map[string]value.Value, len(order)),
		Errors:  make(map[string]error),
	}
	skipped := make(map[string]bool)

	t := newTracker(budget, time.Now())
	inputs := make(map[string]value.Value, len(order))

	for _, id := range order {
		if t.exhausted(time.Now()) {
			result.BudgetExceeded = true
			return result, nil
		}
		if skipped[id] {
			continue
		}

		node := graph.Nodes[id]
		nodeInput := inputs[id]
		if !hasInput(inputs, id) {
			nodeInput = input
		}

		out, execErr := e.executeNodeWithDisposition(ctx, executionID, workflowID, node, nodeInput)
		if encoded, encErr := out.MarshalJSON(); encErr == nil {
			t.recordInvocation(len(encoded))
		} else {
			t.recordInvocation(0)
		}

		if execErr != nil {
			result.Errors[id] = execErr
			switch node.Disposition {
			case Fail, RetryThenFail:
				result.Completed = false
				return result, nil
			case SkipBranch:
				for desc := range graph.descendants(id) {
					skipped[desc] = true
				}
				continue
			case Continue:
				out = value.Null()
			}
		}

		result.Outputs[id] = out
		propagate(graph, inputs, id, out)
	}

	result.Completed = true
	return result, nil
}

func hasInput(inputs map[string]value.Value, id string) bool {
	_, ok := inputs[id]
	return ok
}

func propagate(graph Graph, inputs map[string]value.Value, from string, out value.Value) {
	for _, e := range graph.Edges {
		if e.From == from {
			inputs[e.To] = out
		}
	}
}

// executeNodeWithDisposition dispatches node once, retrying up to
// node.MaxRetries additional times when its disposition is RetryThenFail.
// This node-level retry is separate from, and layered on top of, the
// transport-level retry already applied inside the resilience policy the
// action runtime wraps dispatch in.
func (e *Engine) executeNodeWithDisposition(ctx context.Context, executionID, workflowID string, node Node, input value.Value) (value.Value, error) {
	req := action.NodeRequest{
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		NodeID:      node.ID,
		ActionKey:   node.ActionKey,
		ParamExprs:  node.ParamExprs,
		Input:       input,
		Granted:     node.Granted,
	}

	attempts := 1
	if node.Disposition == RetryThenFail && node.MaxRetries > 0 {
		attempts = node.MaxRetries + 1
	}

	var out value.Value
	var err error
	for i := 0; i < attempts; i++ {
		out, err = e.Runner.Execute(ctx, req)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return value.Null(), errors.Cancelled()
		}
	}
	return out, err
}

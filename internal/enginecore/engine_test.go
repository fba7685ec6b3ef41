package enginecore

import (
	"context"
	"testing"

	"github.com/flowforge/runtime/internal/action"
	"github.com/flowforge/runtime/internal/sandbox"
	"github.com/flowforge/runtime/internal/value"
	"github.com/flowforge/runtime/pkg/errors"
)

type incrementHandler struct{ key string }

func (h incrementHandler) Metadata() action.Metadata {
	return action.Metadata{Key: h.key, Isolation: sandbox.IsolationNone}
}

func (h incrementHandler) Execute(ctx context.Context, actx action.ActionContext, input value.Value) (value.Value, error) {
	n, _ := input.AsInteger()
	return value.Integer(n + 1), nil
}

type failingHandler struct{ key string }

func (h failingHandler) Metadata() action.Metadata {
	return action.Metadata{Key: h.key, Isolation: sandbox.IsolationNone}
}

func (h failingHandler) Execute(ctx context.Context, actx action.ActionContext, input value.Value) (value.Value, error) {
	return value.Null(), errors.Internal("boom", nil)
}

type countingFailThenSucceedHandler struct {
	key     string
	failFor int
	calls   int
}

func (h *countingFailThenSucceedHandler) Metadata() action.Metadata {
	return action.Metadata{Key: h.key, Isolation: sandbox.IsolationNone}
}

func (h *countingFailThenSucceedHandler) Execute(ctx context.Context, actx action.ActionContext, input value.Value) (value.Value, error) {
	h.calls++
	if h.calls <= h.failFor {
		return value.Null(), errors.Internal("not yet", nil)
	}
	return value.Text("done"), nil
}

func newTestEngine(registry *action.Registry) *Engine {
	runner := action.NewRunner(action.RunnerConfig{Registry: registry})
	return New(Config{Actions: registry, Runner: runner})
}

func TestExecuteWorkflowHappyPath(t *testing.T) {
	registry := action.NewRegistry()
	registry.Register(incrementHandler{key: "incr"})
	e := newTestEngine(registry)

	graph := Graph{
		Nodes: map[string]Node{
			"a": {ID: "a", ActionKey: "incr"},
			"b": {ID: "b", ActionKey: "incr"},
		},
		Edges: []Edge{{From: "a", To: "b"}},
	}

	result, err := e.ExecuteWorkflow(context.Background(), "exec1", "wf1", graph, value.Integer(0), ExecutionBudget{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Completed {
		t.Fatal("expected workflow to complete")
	}
	a, _ := result.Outputs["a"].AsInteger()
	b, _ := result.Outputs["b"].AsInteger()
	if a != 1 || b != 2 {
		t.Fatalf("expected a=1 b=2, got a=%d b=%d", a, b)
	}
}

func TestExecuteWorkflowFailDispositionAborts(t *testing.T) {
	registry := action.NewRegistry()
	registry.Register(failingHandler{key: "boom"})
	registry.Register(incrementHandler{key: "incr"})
	e := newTestEngine(registry)

	graph := Graph{
		Nodes: map[string]Node{
			"a": {ID: "a", ActionKey: "boom", Disposition: Fail},
			"b": {ID: "b", ActionKey: "incr"},
		},
		Edges: []Edge{{From: "a", To: "b"}},
	}

	result, err := e.ExecuteWorkflow(context.Background(), "exec1", "wf1", graph, value.Integer(0), ExecutionBudget{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Completed {
		t.Fatal("expected workflow to not complete")
	}
	if _, ok := result.Outputs["b"]; ok {
		t.Fatal("expected downstream node to never run after Fail")
	}
}

func TestExecuteWorkflowContinueDispositionProceedsWithNull(t *testing.T) {
	registry := action.NewRegistry()
	registry.Register(failingHandler{key: "boom"})
	registry.Register(incrementHandler{key: "incr"})
	e := newTestEngine(registry)

	graph := Graph{
		Nodes: map[string]Node{
			"a": {ID: "a", ActionKey: "boom", Disposition: Continue},
			"b": {ID: "b", ActionKey: "incr"},
		},
		Edges: []Edge{{From: "a", To: "b"}},
	}

	result, err := e.ExecuteWorkflow(context.Background(), "exec1", "wf1", graph, value.Integer(0), ExecutionBudget{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Completed {
		t.Fatal("expected workflow to complete despite node a's failure")
	}
	b, _ := result.Outputs["b"].AsInteger()
	if b != 1 {
		t.Fatalf("expected b's input to fall back to null (AsInteger 0), giving b=1, got %d", b)
	}
	if _, ok := result.Errors["a"]; !ok {
		t.Fatal("expected node a's error to be recorded")
	}
}

func TestExecuteWorkflowSkipBranchPrunesDescendants(t *testing.T) {
	registry := action.NewRegistry()
	registry.Register(failingHandler{key: "boom"})
	registry.Register(incrementHandler{key: "incr"})
	e := newTestEngine(registry)

	graph := Graph{
		Nodes: map[string]Node{
			"a": {ID: "a", ActionKey: "boom", Disposition: SkipBranch},
			"b": {ID: "b", ActionKey: "incr"},
			"c": {ID: "c", ActionKey: "incr"},
		},
		Edges: []Edge{{From: "a", To: "b"}},
	}
	_ = graph.Nodes["c"]

	result, err := e.ExecuteWorkflow(context.Background(), "exec1", "wf1", graph, value.Integer(0), ExecutionBudget{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Completed {
		t.Fatal("expected workflow to complete")
	}
	if _, ok := result.Outputs["b"]; ok {
		t.Fatal("expected b to be skipped as a's descendant")
	}
	if _, ok := result.Outputs["c"]; !ok {
		t.Fatal("expected unrelated node c to still run")
	}
}

func TestExecuteWorkflowRetryThenFailSucceedsWithinBudget(t *testing.T) {
	registry := action.NewRegistry()
	h := &countingFailThenSucceedHandler{key: "flaky", failFor: 2}
	registry.Register(h)
	e := newTestEngine(registry)

	graph := Graph{
		Nodes: map[string]Node{
			"a": {ID: "a", ActionKey: "flaky", Disposition: RetryThenFail, MaxRetries: 3},
		},
	}

	result, err := e.ExecuteWorkflow(context.Background(), "exec1", "wf1", graph, value.Null(), ExecutionBudget{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Completed {
		t.Fatal("expected workflow to complete after retries succeed")
	}
	s, _ := result.Outputs["a"].AsText()
	if s != "done" {
		t.Fatalf("expected done, got %v", result.Outputs["a"])
	}
}

func TestExecuteWorkflowRetryThenFailAbortsWhenRetriesExhausted(t *testing.T) {
	registry := action.NewRegistry()
	registry.Register(failingHandler{key: "boom"})
	e := newTestEngine(registry)

	graph := Graph{
		Nodes: map[string]Node{
			"a": {ID: "a", ActionKey: "boom", Disposition: RetryThenFail, MaxRetries: 2},
		},
	}

	result, err := e.ExecuteWorkflow(context.Background(), "exec1", "wf1", graph, value.Null(), ExecutionBudget{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Completed {
		t.Fatal("expected workflow to not complete once retries are exhausted")
	}
}

func TestExecuteWorkflowStopsOnBudgetExhaustion(t *testing.T) {
	registry := action.NewRegistry()
	registry.Register(incrementHandler{key: "incr"})
	e := newTestEngine(registry)

	graph := Graph{
		Nodes: map[string]Node{
			"a": {ID: "a", ActionKey: "incr"},
			"b": {ID: "b", ActionKey: "incr"},
			"c": {ID: "c", ActionKey: "incr"},
		},
		Edges: []Edge{{From: "a", To: "b"}, {From: "b", To: "c"}},
	}

	result, err := e.ExecuteWorkflow(context.Background(), "exec1", "wf1", graph, value.Integer(0), ExecutionBudget{MaxInvocations: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.BudgetExceeded {
		t.Fatal("expected budget exhaustion to be reported")
	}
	if len(result.Outputs) != 1 {
		t.Fatalf("expected exactly one node to have run before the budget stopped execution, got %d", len(result.Outputs))
	}
}

func TestExecuteWorkflowDetectsCycle(t *testing.T) {
	registry := action.NewRegistry()
	e := newTestEngine(registry)

	graph := Graph{
		Nodes: map[string]Node{"a": {ID: "a"}, "b": {ID: "b"}},
		Edges: []Edge{{From: "a", To: "b"}, {From: "b", To: "a"}},
	}

	_, err := e.ExecuteWorkflow(context.Background(), "exec1", "wf1", graph, value.Null(), ExecutionBudget{})
	if err == nil {
		t.Fatal("expected cycle detection to surface as an error")
	}
}

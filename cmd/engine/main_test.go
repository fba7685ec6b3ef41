package main

import (
	"context"
	"testing"

	"github.com/flowforge/runtime/internal/enginecore"
	"github.com/flowforge/runtime/internal/value"
	"github.com/flowforge/runtime/pkg/config"
	"github.com/flowforge/runtime/pkg/errors"
)

func TestExitCodeForError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", errors.Validation("field", "bad"), exitFatalConfiguration},
		{"cancelled", errors.Cancelled(), exitCancelled},
		{"internal", errors.Internal("boom", nil), exitUnexpected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCodeForError(tc.err); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestBuildEngineWiresDemoActionsThroughWorkflow(t *testing.T) {
	cfg := config.New()
	eng, registry := buildEngine(cfg)
	registerDemoActions(registry)

	result, err := eng.ExecuteWorkflow(context.Background(), "test-exec", "test-workflow", demoGraph(), value.Integer(1), enginecore.ExecutionBudget{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Completed {
		t.Fatalf("expected demo workflow to complete, errors: %v", result.Errors)
	}
	sum, ok := result.Outputs["sum"].AsInteger()
	if !ok {
		t.Fatalf("expected sum output to be an integer, got %#v", result.Outputs["sum"])
	}
	if sum != 4 {
		t.Fatalf("expected (1+1)*2=4, got %d", sum)
	}
}

func TestDemoGraphHasNoCycle(t *testing.T) {
	g := demoGraph()
	if len(g.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(g.Nodes))
	}
}

package sandbox

import (
	"context"
	"testing"

	"github.com/flowforge/runtime/internal/value"
	"github.com/flowforge/runtime/pkg/errors"
)

func TestScriptRunnerExecutesEntryPoint(t *testing.T) {
	r := NewScriptRunner()
	sh := ScriptHandler{
		Script:     `function handle(input) { return input + 1; }`,
		EntryPoint: "handle",
	}
	out, err := r.ExecuteScript(context.Background(), "node-1", ActionMetadata{}, NewCapabilitySet(), sh, value.Integer(41))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, ok := out.AsInteger()
	if !ok || n != 42 {
		t.Fatalf("expected 42, got %v (ok=%v)", out, ok)
	}
}

func TestScriptRunnerMissingEntryPoint(t *testing.T) {
	r := NewScriptRunner()
	sh := ScriptHandler{
		Script:     `function other() { return 1; }`,
		EntryPoint: "handle",
	}
	_, err := r.ExecuteScript(context.Background(), "node-1", ActionMetadata{}, NewCapabilitySet(), sh, value.Null())
	if err == nil {
		t.Fatal("expected missing entry point to fail")
	}
	if errors.KindOf(err) != errors.KindValidation {
		t.Fatalf("expected KindValidation, got %v", errors.KindOf(err))
	}
}

func TestScriptRunnerDeniedBeforeExecuting(t *testing.T) {
	r := NewScriptRunner()
	meta := ActionMetadata{Required: []Capability{CredentialCapability("db")}}
	sh := ScriptHandler{
		Script:     `function handle(input) { throw new Error("should never run"); }`,
		EntryPoint: "handle",
	}
	_, err := r.ExecuteScript(context.Background(), "node-1", meta, NewCapabilitySet(), sh, value.Null())
	if err == nil {
		t.Fatal("expected capability check to deny before the script runs")
	}
	if errors.KindOf(err) != errors.KindSandboxViolation {
		t.Fatalf("expected KindSandboxViolation, got %v", errors.KindOf(err))
	}
}

func TestScriptRunnerExposesSecretsAndConsole(t *testing.T) {
	r := NewScriptRunner()
	sh := ScriptHandler{
		Script: `function handle(input) {
			console.log("running");
			return secrets.apiKey;
		}`,
		EntryPoint: "handle",
		Secrets:    map[string]string{"apiKey": "sk-test"},
	}
	out, err := r.ExecuteScript(context.Background(), "node-1", ActionMetadata{}, NewCapabilitySet(), sh, value.Null())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, ok := out.AsText()
	if !ok || s != "sk-test" {
		t.Fatalf("expected secret value to be returned, got %v", out)
	}
}

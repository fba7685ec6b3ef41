package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		component string
		level     string
		format    string
	}{
		{"json logger", "engine", "info", "json"},
		{"text logger", "engine", "debug", "text"},
		{"invalid level falls back to info", "engine", "bogus", "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.component, tt.level, tt.format)
			if logger == nil {
				t.Fatal("New() returned nil")
			}
			if logger.component != tt.component {
				t.Errorf("component = %v, want %v", logger.component, tt.component)
			}
		})
	}
}

func TestLogger_WithContextPropagatesIDs(t *testing.T) {
	logger := New("engine", "info", "json")
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithWorkflow(ctx, "wf-1", "exec-1")
	ctx = WithNode(ctx, "node-1")

	logger.WithContext(ctx).Info("hello")

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	for _, field := range []string{"trace_id", "workflow_id", "execution_id", "node_id", "component"} {
		if _, ok := decoded[field]; !ok {
			t.Errorf("expected field %q in log output, got %v", field, decoded)
		}
	}
}

func TestLogCredentialEventIncludesErrorMessage(t *testing.T) {
	logger := New("credential", "info", "json")
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.LogCredentialEvent(context.Background(), "cred-1", "refreshed", errors.New("boom"))

	if bytes.Contains(buf.Bytes(), []byte("boom")) == false {
		t.Fatal("expected error message to appear in structured output")
	}
}

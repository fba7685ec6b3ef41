package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCanonicalPath(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/healthz", "/healthz"},
		{"/workflows", "/workflows"},
		{"/workflows/abc-123", "/workflows/:id"},
		{"/executions/abc-123", "/executions/:id"},
		{"/executions/abc-123/nodes", "/executions/:id"},
	}
	for _, tc := range cases {
		if got := canonicalPath(tc.raw); got != tc.want {
			t.Errorf("canonicalPath(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestOrUnknown(t *testing.T) {
	if got := orUnknown(""); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
	if got := orUnknown("demo"); got != "demo" {
		t.Fatalf("expected demo, got %q", got)
	}
}

func TestInstrumentHandlerRecordsStatus(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := InstrumentHandler(inner)

	req := httptest.NewRequest(http.MethodGet, "/workflows/abc", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rec.Code)
	}
}

func TestInstrumentHandlerSkipsMetricsPath(t *testing.T) {
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	h := InstrumentHandler(inner)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Fatal("expected inner handler to still be invoked")
	}
}

func TestRecordFunctionsDoNotPanic(t *testing.T) {
	RecordWorkflowExecution("wf-1", "completed", 10*time.Millisecond)
	RecordNodesSkipped("wf-1", 2)
	RecordActionInvocation("demo.increment", "success", 5*time.Millisecond)
	RecordSandboxDenial("demo.increment")
	RecordCredentialCacheLookup(true)
	RecordCredentialCacheLookup(false)
	RecordCredentialRotation("cred-1", "success")
	SetResourcePoolSize("postgres", 2, 1)
	RecordResourceAcquire("postgres", 2*time.Millisecond)
	SetCircuitBreakerState("demo-service", 0)
}

func TestHandlerServesMetrics(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

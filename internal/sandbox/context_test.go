package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/flowforge/runtime/pkg/errors"
)

func TestSandboxedContextCheckCredentialDenied(t *testing.T) {
	sctx := NewSandboxedContext(context.Background(), "node-1", NewCapabilitySet(CredentialCapability("a")))
	if err := sctx.CheckCredential("a"); err != nil {
		t.Fatalf("expected granted credential to pass, got %v", err)
	}
	err := sctx.CheckCredential("b")
	if err == nil {
		t.Fatal("expected ungranted credential to fail")
	}
	if errors.KindOf(err) != errors.KindSandboxViolation {
		t.Fatalf("expected KindSandboxViolation, got %v", errors.KindOf(err))
	}
}

func TestSandboxedContextCheckResource(t *testing.T) {
	sctx := NewSandboxedContext(context.Background(), "node-1", NewCapabilitySet(ResourceCapability("db")))
	if err := sctx.CheckResource("db"); err != nil {
		t.Fatalf("expected granted resource to pass, got %v", err)
	}
	if err := sctx.CheckResource("cache"); err == nil {
		t.Fatal("expected ungranted resource to fail")
	}
}

func TestSandboxedContextCheckNetwork(t *testing.T) {
	sctx := NewSandboxedContext(context.Background(), "node-1", NewCapabilitySet(NetworkCapability("*.example.com")))
	if err := sctx.CheckNetwork("api.example.com"); err != nil {
		t.Fatalf("expected matching host to pass, got %v", err)
	}
	if err := sctx.CheckNetwork("evil.com"); err == nil {
		t.Fatal("expected non-matching host to fail")
	}
}

func TestSandboxedContextCheckFileSystem(t *testing.T) {
	sctx := NewSandboxedContext(context.Background(), "node-1", NewCapabilitySet(FileSystemCapability(true, "/data")))
	if err := sctx.CheckFileSystem(true, "/data/a.txt"); err != nil {
		t.Fatalf("expected read within granted prefix to pass, got %v", err)
	}
	if err := sctx.CheckFileSystem(false, "/data/a.txt"); err == nil {
		t.Fatal("expected write against a read-only grant to fail")
	}
	if err := sctx.CheckFileSystem(true, "/other/a.txt"); err == nil {
		t.Fatal("expected a path outside the granted prefix to fail")
	}
}

func TestSandboxedContextCheckEnvironment(t *testing.T) {
	sctx := NewSandboxedContext(context.Background(), "node-1", NewCapabilitySet(EnvironmentCapability("A", "B")))
	if err := sctx.CheckEnvironment("A"); err != nil {
		t.Fatalf("expected granted key to pass, got %v", err)
	}
	if err := sctx.CheckEnvironment("C"); err == nil {
		t.Fatal("expected ungranted key to fail")
	}
}

func TestSandboxedContextCheckMaxMemoryAndCpuTime(t *testing.T) {
	sctx := NewSandboxedContext(context.Background(), "node-1", NewCapabilitySet(
		MaxMemoryCapability(4096),
		MaxCpuTimeCapability(time.Second),
	))
	if err := sctx.CheckMaxMemory(1024); err != nil {
		t.Fatalf("expected a lower memory requirement to pass, got %v", err)
	}
	if err := sctx.CheckMaxMemory(8192); err == nil {
		t.Fatal("expected a higher memory requirement to fail")
	}
	if err := sctx.CheckMaxCpuTime(500 * time.Millisecond); err != nil {
		t.Fatalf("expected a lower cpu time requirement to pass, got %v", err)
	}
	if err := sctx.CheckMaxCpuTime(2 * time.Second); err == nil {
		t.Fatal("expected a higher cpu time requirement to fail")
	}
}

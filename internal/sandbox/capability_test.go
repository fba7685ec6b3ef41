package sandbox

import (
	"testing"
	"time"
)

func TestCredentialCapabilityExactMatch(t *testing.T) {
	granted := CredentialCapability("db-cred")
	if !granted.Satisfies(CredentialCapability("db-cred")) {
		t.Fatal("expected exact id match to satisfy")
	}
	if granted.Satisfies(CredentialCapability("other")) {
		t.Fatal("expected different id to not satisfy")
	}
}

func TestNetworkCapabilityWildcardSuffix(t *testing.T) {
	granted := NetworkCapability("*.example.com", "api.internal")
	cases := []struct {
		host string
		want bool
	}{
		{"foo.example.com", true},
		{"example.com", true},
		{"api.internal", true},
		{"evil.com", false},
	}
	for _, c := range cases {
		got := granted.Satisfies(NetworkCapability(c.host))
		if got != c.want {
			t.Errorf("host %q: got %v want %v", c.host, got, c.want)
		}
	}
}

func TestNetworkCapabilityRequiresEveryHost(t *testing.T) {
	granted := NetworkCapability("api.example.com")
	if granted.Satisfies(NetworkCapability("api.example.com", "other.com")) {
		t.Fatal("expected a required host not covered by any pattern to fail")
	}
}

func TestFileSystemCapabilityPrefixMatch(t *testing.T) {
	granted := FileSystemCapability(false, "/data")
	if !granted.Satisfies(FileSystemCapability(true, "/data/foo.txt")) {
		t.Fatal("expected prefix match to satisfy a read requirement")
	}
}

func TestFileSystemReadOnlyGrantCannotSatisfyWrite(t *testing.T) {
	granted := FileSystemCapability(true, "/data")
	if granted.Satisfies(FileSystemCapability(false, "/data/foo.txt")) {
		t.Fatal("expected a read-only grant to never satisfy a write requirement")
	}
}

func TestEnvironmentCapabilitySubset(t *testing.T) {
	granted := EnvironmentCapability("A", "B", "C")
	if !granted.Satisfies(EnvironmentCapability("A", "B")) {
		t.Fatal("expected subset of granted keys to satisfy")
	}
	if granted.Satisfies(EnvironmentCapability("A", "D")) {
		t.Fatal("expected a key outside the granted set to fail")
	}
}

func TestMaxMemoryCapabilityGreaterOrEqual(t *testing.T) {
	granted := MaxMemoryCapability(1024)
	if !granted.Satisfies(MaxMemoryCapability(512)) {
		t.Fatal("expected a larger grant to satisfy a smaller requirement")
	}
	if granted.Satisfies(MaxMemoryCapability(2048)) {
		t.Fatal("expected a smaller grant to not satisfy a larger requirement")
	}
}

func TestMaxCpuTimeCapabilityGreaterOrEqual(t *testing.T) {
	granted := MaxCpuTimeCapability(time.Second)
	if !granted.Satisfies(MaxCpuTimeCapability(500 * time.Millisecond)) {
		t.Fatal("expected a larger grant to satisfy a smaller requirement")
	}
}

func TestDifferentVariantsNeverSatisfy(t *testing.T) {
	if CredentialCapability("x").Satisfies(ResourceCapability("x")) {
		t.Fatal("expected different capability variants to never satisfy each other")
	}
}

func TestCapabilitySetSatisfiesAll(t *testing.T) {
	set := NewCapabilitySet(
		CredentialCapability("db-cred"),
		NetworkCapability("*.example.com"),
	)
	_, ok := set.SatisfiesAll([]Capability{
		CredentialCapability("db-cred"),
		NetworkCapability("api.example.com"),
	})
	if !ok {
		t.Fatal("expected every required capability to be satisfied")
	}

	offending, ok := set.SatisfiesAll([]Capability{
		ResourceCapability("missing"),
	})
	if ok {
		t.Fatal("expected an unsatisfied requirement to fail")
	}
	if offending.Kind() != KindResource {
		t.Fatalf("expected the offending capability to be reported, got %v", offending.Kind())
	}
}

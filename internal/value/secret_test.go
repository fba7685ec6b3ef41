package value

import (
	"fmt"
	"testing"
)

func TestSecretExposeReturnsBytes(t *testing.T) {
	s := NewSecret([]byte("hunter2"))
	got := s.Expose(func(b []byte) any { return string(b) })
	if got != "hunter2" {
		t.Fatalf("Expose = %v, want hunter2", got)
	}
}

func TestSecretCloneIsIndependent(t *testing.T) {
	s := NewSecret([]byte("abc"))
	clone := s.Clone()
	s.Close()
	if clone.Len() != 3 {
		t.Fatal("closing the original must not affect an independent clone")
	}
}

func TestSecretCloseZeroizes(t *testing.T) {
	s := NewSecret([]byte("abc"))
	s.Close()
	if s.Len() != 0 {
		t.Fatal("Close must zero the secret's reported length")
	}
}

func TestSecretEqualConstantTime(t *testing.T) {
	a := NewSecret([]byte("same-value"))
	b := NewSecret([]byte("same-value"))
	c := NewSecret([]byte("different"))
	if !a.Equal(b) {
		t.Fatal("identical secrets should be equal")
	}
	if a.Equal(c) {
		t.Fatal("different secrets should not be equal")
	}
}

func TestSecretFormatterNeverExposesBytes(t *testing.T) {
	s := NewSecret([]byte("top-secret-value"))
	formatted := fmt.Sprintf("%v / %s", s, s)
	if contains(formatted, "top-secret-value") {
		t.Fatalf("formatted output leaked secret bytes: %q", formatted)
	}
}

func TestSecretGoStringNeverExposesBytes(t *testing.T) {
	s := NewSecret([]byte("top-secret-value"))
	formatted := fmt.Sprintf("%#v / %+v", s, s)
	if contains(formatted, "top-secret-value") {
		t.Fatalf("debug-formatted output leaked secret bytes: %q", formatted)
	}
	if got := fmt.Sprintf("%#v", s); got != "Secret(***REDACTED***)" {
		t.Fatalf("%%#v = %q, want the redaction marker", got)
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

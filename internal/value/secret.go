package value

import (
	"crypto/subtle"
)

// Secret holds sensitive bytes (tokens, passwords, key material) outside
// the normal Value tagged-union so that every formatting path — %v, %s,
// JSON marshaling, log fields — has to go through Expose deliberately
// rather than accidentally stringifying the payload. Secret implements
// fmt.Stringer itself, pinning %v/%s to a fixed redacted marker so that an
// accidental log statement can never print the underlying bytes no matter
// which verb is used.
type Secret struct {
	// buf is deliberately unexported and never returned by value; every
	// read goes through Expose so callers cannot retain a reference past
	// the closure that is allowed to see it.
	buf []byte
}

// NewSecret takes ownership of b, cloning it so the caller's copy can be
// zeroized independently. Callers that already hold a buffer they don't
// need afterward should zero it themselves once NewSecret returns.
func NewSecret(b []byte) *Secret {
	cloned := make([]byte, len(b))
	copy(cloned, b)
	return &Secret{buf: cloned}
}

// Len reports the secret's byte length without exposing its content.
func (s *Secret) Len() int {
	if s == nil {
		return 0
	}
	return len(s.buf)
}

// Expose invokes fn with the secret's raw bytes and returns its result. fn
// must not retain the slice beyond the call: the backing array is
// zeroized and freed independently of fn's lifetime guarantees, so any
// retained reference observes zeroed memory after a later Close.
func (s *Secret) Expose(fn func([]byte) any) any {
	if s == nil {
		return fn(nil)
	}
	return fn(s.buf)
}

// ExposeErr is Expose for functions that can fail, avoiding an any-typed
// error round-trip at call sites like decryption.
func (s *Secret) ExposeErr(fn func([]byte) error) error {
	if s == nil {
		return fn(nil)
	}
	return fn(s.buf)
}

// Equal performs a constant-time comparison of two secrets' bytes, so that
// comparing credentials never leaks timing information about where the
// first mismatching byte occurs.
func (s *Secret) Equal(other *Secret) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.buf) != len(other.buf) {
		return false
	}
	return subtle.ConstantTimeCompare(s.buf, other.buf) == 1
}

// Clone returns an independent Secret with its own backing buffer, so that
// zeroizing one copy never affects the other.
func (s *Secret) Clone() *Secret {
	if s == nil {
		return nil
	}
	return NewSecret(s.buf)
}

// Close zeroizes the secret's backing buffer in place. Close is idempotent
// and safe to call on a nil receiver.
func (s *Secret) Close() {
	if s == nil {
		return
	}
	for i := range s.buf {
		s.buf[i] = 0
	}
	s.buf = nil
}

// String never reveals secret content; it exists only so that accidental
// %v/%s formatting (e.g. in a log statement or error message) degrades to
// a safe marker instead of a compile error or a panic.
func (s *Secret) String() string {
	if s == nil {
		return "Secret(nil)"
	}
	return "Secret(***REDACTED***)"
}

// GoString pins %#v to the same redacted marker as String, so a debug
// dump of a struct embedding a Secret never prints its backing buffer.
func (s *Secret) GoString() string {
	return s.String()
}

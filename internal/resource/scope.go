package resource

import "strings"

// Scope names the tenancy/environment boundary a pool is bound to, as an
// explicit full path (e.g. "tenant-a/prod" or "tenant-a/prod/worker-1").
// Scopes are always explicit, fully-qualified paths: nothing infers a
// narrower scope from a wider one except through the ScopingStrategy
// below.
type Scope string

// Global is the scope used when a resource has no tenancy boundary.
const Global Scope = ""

// segments splits a scope into its path components.
func (s Scope) segments() []string {
	if s == Global {
		return nil
	}
	return strings.Split(string(s), "/")
}

// contains reports whether s is the same scope as, or an ancestor (strict
// prefix of path segments) of, other.
func (s Scope) contains(other Scope) bool {
	if s == Global {
		return true
	}
	sp, op := s.segments(), other.segments()
	if len(sp) > len(op) {
		return false
	}
	for i, seg := range sp {
		if op[i] != seg {
			return false
		}
	}
	return true
}

// ScopingStrategy resolves which configured pool scopes are eligible
// candidates for a request against requested, in priority order (first
// candidate wins).
type ScopingStrategy int

const (
	// Strict admits only an exact scope match.
	Strict ScopingStrategy = iota
	// Hierarchical admits any configured scope that contains (is an
	// ancestor of, or equal to) the requested scope, closest first.
	Hierarchical
	// Fallback tries an exact match first, then Hierarchical.
	Fallback
)

// Resolve returns the configured scopes eligible to serve requested, most
// specific first.
func (s ScopingStrategy) Resolve(requested Scope, configured []Scope) []Scope {
	switch s {
	case Strict:
		for _, c := range configured {
			if c == requested {
				return []Scope{c}
			}
		}
		return nil
	case Hierarchical, Fallback:
		var exact []Scope
		var ancestors []Scope
		for _, c := range configured {
			if c == requested {
				exact = append(exact, c)
				continue
			}
			if c.contains(requested) {
				ancestors = append(ancestors, c)
			}
		}
		// Longest (most specific) ancestor first.
		sortByDepthDesc(ancestors)
		if s == Fallback {
			return append(exact, ancestors...)
		}
		return append(exact, ancestors...)
	default:
		return nil
	}
}

func sortByDepthDesc(scopes []Scope) {
	for i := 1; i < len(scopes); i++ {
		for j := i; j > 0 && len(scopes[j].segments()) > len(scopes[j-1].segments()); j-- {
			scopes[j], scopes[j-1] = scopes[j-1], scopes[j]
		}
	}
}

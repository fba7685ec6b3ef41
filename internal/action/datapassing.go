package action

import "github.com/flowforge/runtime/internal/value"

// DataPassingPolicy chooses how a node's output value is handed to its
// downstream edges. Because value.Value is persistent and immutable,
// Clone is a cheap no-op copy rather than a deep copy, so both policies
// are observationally identical; ByValue only makes the copy visible at
// the call site. Neither policy copies the byte slice returned by
// value.Value.AsBytes: the clone shares it with the original.
type DataPassingPolicy int

const (
	ByReference DataPassingPolicy = iota
	ByValue
)

// Pass applies policy to v before handing it to a downstream edge.
func Pass(policy DataPassingPolicy, v value.Value) value.Value {
	if policy == ByValue {
		return v.Clone()
	}
	return v
}

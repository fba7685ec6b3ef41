// Package value implements the workflow runtime's immutable structured
// Value type and its zeroizing Secret companion (spec component C1).
//
// Value is represented as a tagged struct rather than a true sum type —
// idiomatic Go has no sum types — mirroring the StackItem{Type, Value}
// shape used for NEO VM stack items in infrastructure/chain/stack_parsers.go,
// generalized from a fixed blockchain-RPC vocabulary to the eight variants
// the spec requires.
package value

import (
	"bytes"
	"math"
	"strings"

	"github.com/flowforge/runtime/pkg/errors"
)

// Kind identifies a Value's variant.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInteger
	KindFloat
	KindText
	KindBytes
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBytes:
		return "bytes"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is an immutable structured value. Every mutating operation
// (Append, Set, Merge) returns a new Value without modifying the
// receiver's backing slice/map; Append and Set copy the whole slice/map
// rather than sharing structure with the receiver.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	s     string
	bytes []byte
	arr   []Value
	obj   map[string]Value
}

func Null() Value                { return Value{kind: KindNull} }
func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }
func Integer(i int64) Value      { return Value{kind: KindInteger, i: i} }
func Float(f float64) Value      { return Value{kind: KindFloat, f: f} }
func Text(s string) Value        { return Value{kind: KindText, s: s} }
func Bytes(b []byte) Value       { return Value{kind: KindBytes, bytes: append([]byte(nil), b...)} }

// Array constructs an array Value, cloning the input slice so later
// mutation of the caller's slice cannot leak into the persistent Value.
func Array(items ...Value) Value {
	cloned := append([]Value(nil), items...)
	return Value{kind: KindArray, arr: cloned}
}

// Object constructs an object Value from a map, copying it so the Value
// remains immutable even if the caller mutates the original map.
func Object(fields map[string]Value) Value {
	cloned := make(map[string]Value, len(fields))
	for k, v := range fields {
		cloned[k] = v
	}
	return Value{kind: KindObject, obj: cloned}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v Value) AsInteger() (int64, bool)   { return v.i, v.kind == KindInteger }
func (v Value) AsFloat() (float64, bool)   { return v.f, v.kind == KindFloat }
func (v Value) AsText() (string, bool)     { return v.s, v.kind == KindText }
func (v Value) AsBytes() ([]byte, bool)    { return v.bytes, v.kind == KindBytes }

// AsArray returns a read-only view of the backing slice. Callers must treat
// the result as immutable; use Append to derive a new Value.
func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == KindArray }

// AsObject returns a read-only view of the backing map. Callers must treat
// the result as immutable; use Set to derive a new Value.
func (v Value) AsObject() (map[string]Value, bool) { return v.obj, v.kind == KindObject }

// Clone returns an independent Value. Because Value is persistent, this is
// O(1): the returned Value shares the same backing array/map, which is safe
// since neither the receiver nor the clone ever mutates it in place.
func (v Value) Clone() Value { return v }

// Append returns a new array Value with item appended, leaving the
// receiver untouched.
func (v Value) Append(item Value) (Value, error) {
	if v.kind != KindArray {
		return Value{}, errors.Validation("value", "Append requires an array Value")
	}
	next := make([]Value, len(v.arr)+1)
	copy(next, v.arr)
	next[len(v.arr)] = item
	return Value{kind: KindArray, arr: next}, nil
}

// Set returns a new object Value with key bound to val, leaving the
// receiver untouched.
func (v Value) Set(key string, val Value) (Value, error) {
	if v.kind != KindObject {
		return Value{}, errors.Validation("value", "Set requires an object Value")
	}
	next := make(map[string]Value, len(v.obj)+1)
	for k, existing := range v.obj {
		next[k] = existing
	}
	next[key] = val
	return Value{kind: KindObject, obj: next}, nil
}

// Equal implements structural equality. Floats compare by IEEE-754 bit
// pattern rather than Go's native == (so -0.0 and 0.0 differ), except that
// any NaN operand makes the comparison false regardless of bit pattern
// ("NaN != NaN").
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindInteger:
		return v.i == other.i
	case KindFloat:
		if math.IsNaN(v.f) || math.IsNaN(other.f) {
			return false
		}
		return math.Float64bits(v.f) == math.Float64bits(other.f)
	case KindText:
		return v.s == other.s
	case KindBytes:
		return string(v.bytes) == string(other.bytes)
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, val := range v.obj {
			ov, ok := other.obj[k]
			if !ok || !val.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Hash produces a hash consistent with Equal: hash(v) == hash(v.Clone())
// always, and equal values hash equally (the converse need not hold).
func (v Value) Hash() uint64 {
	const offset = 14695981039346656037
	const prime = 1099511628211

	h := uint64(offset)
	mix := func(b byte) {
		h ^= uint64(b)
		h *= prime
	}
	mixString := func(s string) {
		for i := 0; i < len(s); i++ {
			mix(s[i])
		}
	}

	mix(byte(v.kind))
	switch v.kind {
	case KindBool:
		if v.b {
			mix(1)
		} else {
			mix(0)
		}
	case KindInteger:
		bits := uint64(v.i)
		for i := 0; i < 8; i++ {
			mix(byte(bits >> (8 * i)))
		}
	case KindFloat:
		bits := math.Float64bits(v.f)
		for i := 0; i < 8; i++ {
			mix(byte(bits >> (8 * i)))
		}
	case KindText:
		mixString(v.s)
	case KindBytes:
		mixString(string(v.bytes))
	case KindArray:
		for _, item := range v.arr {
			bits := item.Hash()
			for i := 0; i < 8; i++ {
				mix(byte(bits >> (8 * i)))
			}
		}
	case KindObject:
		// Order-independent: XOR each field's hash in rather than chaining,
		// since map iteration order is unspecified.
		var acc uint64
		for k, val := range v.obj {
			kh := fnv64(k)
			vh := val.Hash()
			acc ^= kh*prime ^ vh
		}
		h ^= acc
	}
	return h
}

func fnv64(s string) uint64 {
	h := uint64(14695981039346656037)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

// Compare orders v against other within a single variant: -1 if v < other,
// 0 if equal, 1 if v > other. Comparing across variants is a Validation
// error rather than an arbitrary kind ordering. Objects have no natural
// total order and always return an error.
func (v Value) Compare(other Value) (int, error) {
	if v.kind != other.kind {
		return 0, errors.Validation("value", "cannot compare "+v.kind.String()+" with "+other.kind.String())
	}
	switch v.kind {
	case KindNull:
		return 0, nil
	case KindBool:
		return compareBool(v.b, other.b), nil
	case KindInteger:
		return compareInt64(v.i, other.i), nil
	case KindFloat:
		return compareFloat64(v.f, other.f), nil
	case KindText:
		return strings.Compare(v.s, other.s), nil
	case KindBytes:
		return bytes.Compare(v.bytes, other.bytes), nil
	case KindArray:
		return compareArrays(v.arr, other.arr)
	case KindObject:
		return 0, errors.Validation("value", "object values have no total order")
	default:
		return 0, errors.Internal("unknown value kind in Compare", nil)
	}
}

func compareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// compareFloat64 orders NaN as greater than every other float, including
// itself only when compared with another NaN, so Compare still produces a
// total order even though IEEE-754 < and > are both false for NaN.
func compareFloat64(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareArrays(a, b []Value) (int, error) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		c, err := a[i].Compare(b[i])
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return c, nil
		}
	}
	return compareInt64(int64(len(a)), int64(len(b))), nil
}

package value

import (
	"github.com/flowforge/runtime/pkg/errors"
)

// Go has no type-level integer constants (no const-generics), so bounded
// text/array/object sizes are implemented as runtime-parameterized
// wrappers configured at construction time rather than compile-time-distinct
// types. Construction and every growth operation above the configured
// bound return a LimitExceeded error.

// BoundedText is a Text Value whose rune length may never exceed Max.
type BoundedText struct {
	Max   int
	value Value
}

func NewBoundedText(max int, s string) (*BoundedText, error) {
	if length := len([]rune(s)); length > max {
		return nil, errors.LimitExceeded("text", max).WithDetails("actual", length)
	}
	return &BoundedText{Max: max, value: Text(s)}, nil
}

func (b *BoundedText) Value() Value { return b.value }

// BoundedArray is an Array Value whose element count may never exceed Max.
type BoundedArray struct {
	Max   int
	value Value
}

func NewBoundedArray(max int, items ...Value) (*BoundedArray, error) {
	if len(items) > max {
		return nil, errors.LimitExceeded("array", max).WithDetails("actual", len(items))
	}
	return &BoundedArray{Max: max, value: Array(items...)}, nil
}

// Append returns a new BoundedArray with item appended, or a LimitExceeded
// error if doing so would exceed Max. The receiver is left untouched.
func (b *BoundedArray) Append(item Value) (*BoundedArray, error) {
	arr, _ := b.value.AsArray()
	if len(arr)+1 > b.Max {
		return nil, errors.LimitExceeded("array", b.Max).WithDetails("actual", len(arr)+1)
	}
	next, err := b.value.Append(item)
	if err != nil {
		return nil, err
	}
	return &BoundedArray{Max: b.Max, value: next}, nil
}

func (b *BoundedArray) Value() Value { return b.value }

// BoundedObject is an Object Value whose field count may never exceed Max.
type BoundedObject struct {
	Max   int
	value Value
}

func NewBoundedObject(max int, fields map[string]Value) (*BoundedObject, error) {
	if len(fields) > max {
		return nil, errors.LimitExceeded("object", max).WithDetails("actual", len(fields))
	}
	return &BoundedObject{Max: max, value: Object(fields)}, nil
}

// Set returns a new BoundedObject with key bound to val, or a
// LimitExceeded error if key is new and doing so would exceed Max.
func (b *BoundedObject) Set(key string, val Value) (*BoundedObject, error) {
	obj, _ := b.value.AsObject()
	if _, exists := obj[key]; !exists && len(obj)+1 > b.Max {
		return nil, errors.LimitExceeded("object", b.Max).WithDetails("actual", len(obj)+1)
	}
	next, err := b.value.Set(key, val)
	if err != nil {
		return nil, err
	}
	return &BoundedObject{Max: b.Max, value: next}, nil
}

func (b *BoundedObject) Value() Value { return b.value }

package value

import (
	"github.com/flowforge/runtime/pkg/errors"
)

// Add coerces numeric operands: integer+integer stays integer; any operand
// pair involving a float promotes to float; any other combination of kinds
// is a Validation error.
func (v Value) Add(other Value) (Value, error) { return numericOp(v, other, "add") }
func (v Value) Sub(other Value) (Value, error) { return numericOp(v, other, "sub") }
func (v Value) Mul(other Value) (Value, error) { return numericOp(v, other, "mul") }

// Div returns a Validation error on division by zero for both integer and
// float operands (the spec treats float division by zero as an error
// rather than producing +Inf/NaN, unlike raw IEEE-754 division).
func (v Value) Div(other Value) (Value, error) { return numericOp(v, other, "div") }

func numericOp(a, b Value, op string) (Value, error) {
	if a.kind == KindInteger && b.kind == KindInteger {
		return integerOp(a.i, b.i, op)
	}
	af, aok := asNumeric(a)
	bf, bok := asNumeric(b)
	if !aok || !bok {
		return Value{}, errors.Validation("value", "arithmetic requires integer or float operands, got "+a.kind.String()+" and "+b.kind.String())
	}
	return floatOp(af, bf, op)
}

func asNumeric(v Value) (float64, bool) {
	switch v.kind {
	case KindInteger:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

func integerOp(a, b int64, op string) (Value, error) {
	switch op {
	case "add":
		return Integer(a + b), nil
	case "sub":
		return Integer(a - b), nil
	case "mul":
		return Integer(a * b), nil
	case "div":
		if b == 0 {
			return Value{}, errors.Validation("value", "integer division by zero")
		}
		return Integer(a / b), nil
	default:
		return Value{}, errors.Internal("unknown arithmetic op "+op, nil)
	}
}

func floatOp(a, b float64, op string) (Value, error) {
	switch op {
	case "add":
		return Float(a + b), nil
	case "sub":
		return Float(a - b), nil
	case "mul":
		return Float(a * b), nil
	case "div":
		if b == 0 {
			return Value{}, errors.Validation("value", "float division by zero")
		}
		return Float(a / b), nil
	default:
		return Value{}, errors.Internal("unknown arithmetic op "+op, nil)
	}
}

// Merge combines v with other: scalars are right-biased (other wins),
// arrays concatenate element-wise, and objects merge key by key,
// recursing into nested objects so a deep-merge of two object trees only
// replaces the leaves that actually differ.
func (v Value) Merge(other Value) (Value, error) {
	if v.kind != other.kind {
		if v.kind == KindNull {
			return other, nil
		}
		return other, nil
	}
	switch v.kind {
	case KindArray:
		merged := make([]Value, 0, len(v.arr)+len(other.arr))
		merged = append(merged, v.arr...)
		merged = append(merged, other.arr...)
		return Value{kind: KindArray, arr: merged}, nil
	case KindObject:
		merged := make(map[string]Value, len(v.obj)+len(other.obj))
		for k, val := range v.obj {
			merged[k] = val
		}
		for k, val := range other.obj {
			if existing, ok := merged[k]; ok && existing.kind == KindObject && val.kind == KindObject {
				nested, err := existing.Merge(val)
				if err != nil {
					return Value{}, err
				}
				merged[k] = nested
				continue
			}
			merged[k] = val
		}
		return Value{kind: KindObject, obj: merged}, nil
	default:
		return other, nil
	}
}

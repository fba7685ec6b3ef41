package value

import (
	"encoding/base64"
	"encoding/json"
	"sort"

	"github.com/PaesslerAG/jsonpath"

	"github.com/flowforge/runtime/pkg/errors"
)

// bytesTagKey marks a JSON object as the wire encoding of a Bytes Value,
// distinguishing it from a Text Value on decode (both would otherwise
// decode to the same JSON string).
const bytesTagKey = "$bytes"

// ToInterface projects a Value onto a generic interface{} tree, the shape
// encoding/json and PaesslerAG/jsonpath both expect.
func (v Value) ToInterface() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInteger:
		return v.i
	case KindFloat:
		return v.f
	case KindText:
		return v.s
	case KindBytes:
		return append([]byte(nil), v.bytes...)
	case KindArray:
		out := make([]interface{}, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.ToInterface()
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.ToInterface()
		}
		return out
	default:
		return nil
	}
}

// FromInterface builds a Value from a generic interface{} tree, the
// counterpart used after encoding/json.Unmarshal or a jsonpath query
// result. Unrecognized concrete types are rejected with a Validation
// error rather than silently dropped.
func FromInterface(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case int:
		return Integer(int64(t)), nil
	case int64:
		return Integer(t), nil
	case float64:
		// encoding/json decodes all JSON numbers as float64; preserve
		// integer-valued floats as Integer only when they round-trip
		// exactly, otherwise keep them as Float.
		if t == float64(int64(t)) {
			return Integer(int64(t)), nil
		}
		return Float(t), nil
	case string:
		return Text(t), nil
	case []byte:
		return Bytes(t), nil
	case map[string]interface{}:
		if len(t) == 1 {
			if encoded, ok := t[bytesTagKey].(string); ok {
				raw, err := base64.StdEncoding.DecodeString(encoded)
				if err != nil {
					return Value{}, errors.Validation("value", "invalid $bytes encoding")
				}
				return Bytes(raw), nil
			}
		}
		fields := make(map[string]Value, len(t))
		for k, raw := range t {
			item, err := FromInterface(raw)
			if err != nil {
				return Value{}, err
			}
			fields[k] = item
		}
		return Object(fields), nil
	case []interface{}:
		items := make([]Value, len(t))
		for i, raw := range t {
			item, err := FromInterface(raw)
			if err != nil {
				return Value{}, err
			}
			items[i] = item
		}
		return Array(items...), nil
	default:
		return Value{}, errors.Validation("value", "unsupported interface{} type in FromInterface")
	}
}

// Get evaluates a JSONPath expression (e.g. "$.orders[0].total") against v
// and returns the matching Value.
func (v Value) Get(path string) (Value, error) {
	result, err := jsonpath.Get(path, v.ToInterface())
	if err != nil {
		return Value{}, errors.NotFound("path", path).WithDetails("cause", err.Error())
	}
	return FromInterface(result)
}

// MarshalJSON implements json.Marshaler. Object key order is not
// significant to Equal/Hash but is sorted here for deterministic output.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBytes:
		return json.Marshal(map[string]string{bytesTagKey: base64.StdEncoding.EncodeToString(v.bytes)})
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			vb, err := json.Marshal(v.obj[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, ':')
			buf = append(buf, vb...)
		}
		buf = append(buf, '}')
		return buf, nil
	default:
		return json.Marshal(v.ToInterface())
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := FromInterface(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

package datom

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface representing the values a datom may hold.
// Only String, Int, Bool, Ref, Array, Object and Problem implement it.
// NO floats (breaks canonical hashing) and NO null (absence is no datom).
type Value interface {
	datomValue() // Sealed - only these types implement it
}

// String is a string value.
type String string

func (String) datomValue() {}

// Int is an integer value. Always int64, never float64.
type Int int64

func (Int) datomValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) datomValue() {}

// Ref is a reference to another entity. Reference attributes store the
// referenced entity's EID as a Ref.
type Ref EID

func (Ref) datomValue() {}

// EID returns the referenced entity id.
func (r Ref) EID() EID { return EID(r) }

// Array is an ordered list of values.
type Array []Value

func (Array) datomValue() {}

// Object is a map of string keys to values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) datomValue() {}

// ProblemKind tags a deserialization problem.
type ProblemKind string

const (
	// ProblemException means the conversion function failed.
	ProblemException ProblemKind = "exception"
	// ProblemGotNull means the conversion function produced no value.
	ProblemGotNull ProblemKind = "got_null"
	// ProblemUnexpected means the conversion produced a value the attribute cannot hold.
	ProblemUnexpected ProblemKind = "unexpected"
)

// Problem replaces a value that could not be migrated. It keeps the failure
// inspectable in the store instead of aborting the transaction.
type Problem struct {
	Kind    ProblemKind
	Message string
	// Original is the canonical form of the value that failed to convert.
	Original string
}

func (Problem) datomValue() {}

// NewProblemException creates a Problem for a failed conversion.
func NewProblemException(original Value, err error) Problem {
	return Problem{Kind: ProblemException, Message: err.Error(), Original: FormatValue(original)}
}

// NewProblemGotNull creates a Problem for a conversion that produced nothing.
func NewProblemGotNull(original Value) Problem {
	return Problem{Kind: ProblemGotNull, Message: "conversion produced no value", Original: FormatValue(original)}
}

// NewProblemUnexpected creates a Problem for a value of the wrong kind.
func NewProblemUnexpected(original, got Value) Problem {
	return Problem{
		Kind:     ProblemUnexpected,
		Message:  fmt.Sprintf("unexpected value %s", FormatValue(got)),
		Original: FormatValue(original),
	}
}

// IsProblem reports whether v is a deserialization problem.
func IsProblem(v Value) bool {
	_, ok := v.(Problem)
	return ok
}

// SortedKeys returns keys in UTF-16 code unit order.
// Go's sort.Strings uses UTF-8 which produces a different order.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysUTF16)
	return keys
}

// compareKeysUTF16 compares strings by UTF-16 code units.
func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Equal reports whether two values have the same canonical form.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return ValueKey(a) == ValueKey(b)
}

// CompareValues orders values by their canonical key.
func CompareValues(a, b Value) int {
	return strings.Compare(ValueKey(a), ValueKey(b))
}

// FormatValue renders a value for messages and traces.
func FormatValue(v Value) string {
	if v == nil {
		return "<nil>"
	}
	b, err := MarshalValue(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(b)
}

// MarshalValue marshals a value to JSON.
//
// Scalars map to JSON scalars. A Ref becomes {"$ref": n} and a Problem
// becomes {"$problem": kind, "message": ..., "original": ...}.
// NOTE: This is NOT canonical marshaling. Use ValueKey for identity.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case String:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Bool:
		return json.Marshal(bool(val))
	case Ref:
		return []byte(fmt.Sprintf(`{"$ref":%d}`, int64(val))), nil
	case Problem:
		return json.Marshal(map[string]string{
			"$problem": string(val.Kind),
			"message":  val.Message,
			"original": val.Original,
		})
	case Array:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := MarshalValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case Object:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, fmt.Errorf("marshal key %q: %w", k, err)
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := MarshalValue(val[k])
			if err != nil {
				return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// UnmarshalValue parses JSON produced by MarshalValue.
// Floats and null are rejected.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromAny(raw)
}

// FromAny converts a decoded Go value (JSON, YAML or CUE output) to a Value.
//
// Objects of the form {"$ref": n} become Ref values. Null and floats are
// rejected.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is not a value: retract the datom instead")
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		return Int(int64(val)), nil
	case float64:
		if val != float64(int64(val)) {
			return nil, fmt.Errorf("floats are not allowed: %v", val)
		}
		return Int(int64(val)), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("floats are not allowed: %s", val)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", val)
		}
		return Int(n), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		if ref, ok := val["$ref"]; ok && len(val) == 1 {
			n, err := FromAny(ref)
			if err != nil {
				return nil, fmt.Errorf("$ref: %w", err)
			}
			i, ok := n.(Int)
			if !ok {
				return nil, fmt.Errorf("$ref must be an integer, got %T", n)
			}
			return Ref(EID(i)), nil
		}
		obj := make(Object, len(val))
		for k, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = conv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

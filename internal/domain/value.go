package domain

import (
	"fmt"
	"reflect"
	"strconv"
	"time"
)

type valueKind int

const (
	kindNull valueKind = iota
	kindString
	kindNumber
	kindBool
	kindTime
	kindArray
)

// storedTimeFormat is the store's canonical stored-date layout.
const storedTimeFormat = "2006-01-02 15:04:05.000Z"

// Value is the tagged scalar/array/null union carried by a filter condition.
// The zero value is null.
type Value struct {
	kind    valueKind
	str     string
	num     float64
	boolean bool
	ts      time.Time
	arr     []Value
}

// NullValue returns the null value.
func NullValue() Value {
	return Value{}
}

// StringValue wraps a string scalar.
func StringValue(s string) Value {
	return Value{kind: kindString, str: s}
}

// NumberValue wraps a numeric scalar.
func NumberValue(n float64) Value {
	return Value{kind: kindNumber, num: n}
}

// BoolValue wraps a boolean scalar.
func BoolValue(b bool) Value {
	return Value{kind: kindBool, boolean: b}
}

// TimeValue wraps a timestamp scalar.
func TimeValue(t time.Time) Value {
	return Value{kind: kindTime, ts: t}
}

// ArrayValue wraps a list of scalar values.
func ArrayValue(elements ...Value) Value {
	return Value{kind: kindArray, arr: elements}
}

// ValueOf converts an arbitrary Go value into a Value. Slices and arrays of
// any element type become array values with each element converted in turn
// ([]byte stays an atomic string scalar); nil becomes null; unrecognized
// scalar types fall back to their fmt representation.
func ValueOf(v any) Value {
	switch val := v.(type) {
	case nil:
		return NullValue()
	case Value:
		return val
	case string:
		return StringValue(val)
	case bool:
		return BoolValue(val)
	case int:
		return NumberValue(float64(val))
	case int32:
		return NumberValue(float64(val))
	case int64:
		return NumberValue(float64(val))
	case float32:
		return NumberValue(float64(val))
	case float64:
		return NumberValue(val)
	case time.Time:
		return TimeValue(val)
	case []Value:
		return ArrayValue(val...)
	case []string:
		elements := make([]Value, len(val))
		for i, s := range val {
			elements[i] = StringValue(s)
		}
		return ArrayValue(elements...)
	case []any:
		elements := make([]Value, len(val))
		for i, e := range val {
			elements[i] = ValueOf(e)
		}
		return ArrayValue(elements...)
	case []byte:
		return StringValue(string(val))
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			elements := make([]Value, rv.Len())
			for i := range elements {
				elements[i] = ValueOf(rv.Index(i).Interface())
			}
			return ArrayValue(elements...)
		}
		return StringValue(fmt.Sprintf("%v", v))
	}
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool {
	return v.kind == kindNull
}

// IsArray reports whether the value is an array.
func (v Value) IsArray() bool {
	return v.kind == kindArray
}

// Elements returns the array elements, or nil for scalars.
func (v Value) Elements() []Value {
	return v.arr
}

// Literal renders the scalar as the unquoted literal placed between quotes in
// a serialized condition. Null renders to the empty string, which preserves
// the store's "empty quoted string" query semantics.
func (v Value) Literal() string {
	switch v.kind {
	case kindNull:
		return ""
	case kindString:
		return v.str
	case kindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case kindBool:
		return strconv.FormatBool(v.boolean)
	case kindTime:
		return v.ts.UTC().Format(storedTimeFormat)
	default:
		return ""
	}
}

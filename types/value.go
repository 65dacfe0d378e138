package types

import (
	"fmt"
	"strconv"
)

// Type is the discriminant of Value and Range. It is also the wire "type"
// enum field.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeBool
	TypeI32
	TypeI64
	TypeF32
	TypeF64
	TypeString
)

// String renders the type the way it appears on the wire and in XML attrs.
func (t Type) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeI32:
		return "int"
	case TypeI64:
		return "long"
	case TypeF32:
		return "float"
	case TypeF64:
		return "double"
	case TypeString:
		return "string"
	default:
		return "unknown"
	}
}

// ParseType maps a canonical type name (as used in XML attrs and the wire
// protocol) back to a Type. Unknown names yield TypeUnknown.
func ParseType(s string) Type {
	switch s {
	case "bool":
		return TypeBool
	case "int":
		return TypeI32
	case "long":
		return TypeI64
	case "float":
		return TypeF32
	case "double":
		return TypeF64
	case "string":
		return TypeString
	default:
		return TypeUnknown
	}
}

// Value is a discriminated sum over {bool, i32, i64, f32, f64, string}. The
// tag is authoritative: a read/write whose requested type does not match the
// stored type fails with ErrTypeMismatch.
type Value struct {
	typ Type
	b   bool
	i32 int32
	i64 int64
	f32 float32
	f64 float64
	str string
}

func BoolValue(v bool) Value     { return Value{typ: TypeBool, b: v} }
func I32Value(v int32) Value     { return Value{typ: TypeI32, i32: v} }
func I64Value(v int64) Value     { return Value{typ: TypeI64, i64: v} }
func F32Value(v float32) Value   { return Value{typ: TypeF32, f32: v} }
func F64Value(v float64) Value   { return Value{typ: TypeF64, f64: v} }
func StringValue(v string) Value { return Value{typ: TypeString, str: v} }

// Type returns the value's tag.
func (v Value) Type() Type { return v.typ }

func (v Value) Bool() bool   { return v.b }
func (v Value) I32() int32   { return v.i32 }
func (v Value) I64() int64   { return v.i64 }
func (v Value) F32() float32 { return v.f32 }
func (v Value) F64() float64 { return v.f64 }
func (v Value) Str() string  { return v.str }

// Equal reports whether two values of the same type hold the same data. A
// comparison across differing types is always false (callers should have
// already rejected the TypeMismatch case before reaching here).
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeBool:
		return v.b == o.b
	case TypeI32:
		return v.i32 == o.i32
	case TypeI64:
		return v.i64 == o.i64
	case TypeF32:
		return v.f32 == o.f32
	case TypeF64:
		return v.f64 == o.f64
	case TypeString:
		return v.str == o.str
	default:
		return true
	}
}

// InRange reports whether v satisfies r. r must be of the same type as v;
// a type mismatch is treated as out of range rather than panicking, since
// callers are expected to have checked types first.
func (v Value) InRange(r Range) bool {
	if v.typ != r.typ {
		return false
	}
	switch v.typ {
	case TypeBool:
		return true
	case TypeI32:
		return v.i32 >= r.minI32 && v.i32 <= r.maxI32
	case TypeI64:
		return v.i64 >= r.minI64 && v.i64 <= r.maxI64
	case TypeF32:
		return v.f32 >= r.minF32 && v.f32 <= r.maxF32
	case TypeF64:
		return v.f64 >= r.minF64 && v.f64 <= r.maxF64
	case TypeString:
		n := int64(len(v.str))
		return n >= r.minLen && n <= r.maxLen
	default:
		return false
	}
}

// String implements fmt.Stringer for debugging/log output.
func (v Value) String() string { return v.CanonicalString() }

// CanonicalString renders v in its canonical textual form: "true"/"false"
// for bool, decimal for integers, shortest round-trip %g for floats, and the
// raw bytes for strings.
func (v Value) CanonicalString() string {
	switch v.typ {
	case TypeBool:
		if v.b {
			return "true"
		}
		return "false"
	case TypeI32:
		return strconv.FormatInt(int64(v.i32), 10)
	case TypeI64:
		return strconv.FormatInt(v.i64, 10)
	case TypeF32:
		return strconv.FormatFloat(float64(v.f32), 'g', -1, 32)
	case TypeF64:
		return strconv.FormatFloat(v.f64, 'g', -1, 64)
	case TypeString:
		return v.str
	default:
		return ""
	}
}

// ParseValue parses s into a Value of type t using the canonical textual
// form. It returns ErrParse on malformed input.
func ParseValue(t Type, s string) (Value, error) {
	switch t {
	case TypeBool:
		switch s {
		case "true":
			return BoolValue(true), nil
		case "false":
			return BoolValue(false), nil
		default:
			return Value{}, fmt.Errorf("%w: invalid bool %q", ErrParse, s)
		}
	case TypeI32:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrParse, err)
		}
		return I32Value(int32(n)), nil
	case TypeI64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrParse, err)
		}
		return I64Value(n), nil
	case TypeF32:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrParse, err)
		}
		return F32Value(float32(f)), nil
	case TypeF64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrParse, err)
		}
		return F64Value(f), nil
	case TypeString:
		return StringValue(s), nil
	default:
		return Value{}, fmt.Errorf("%w: unknown type", ErrParse)
	}
}

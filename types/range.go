package types

import "fmt"

// Range bounds the legal values of an attribute. For numeric types it is an
// inclusive [min, max] of the same type; for strings it is [minLen, maxLen]
// in bytes; bool ranges carry no data. Range is itself a parallel sum keyed
// on the same Type tag as Value, per the "tagged value" design note.
type Range struct {
	typ    Type
	minI32 int32
	maxI32 int32
	minI64 int64
	maxI64 int64
	minF32 float32
	maxF32 float32
	minF64 float64
	maxF64 float64
	minLen int64
	maxLen int64
}

const maxStringLen = 1<<31 - 1

// BoolRange returns the (unused) range for boolean attributes.
func BoolRange() Range { return Range{typ: TypeBool} }

// I32Range constructs an inclusive int32 range. min > max is a programming
// error and panics rather than silently swapping the bounds.
func I32Range(min, max int32) Range {
	if min > max {
		panic(fmt.Sprintf("types: I32Range min %d > max %d", min, max))
	}
	return Range{typ: TypeI32, minI32: min, maxI32: max}
}

func I64Range(min, max int64) Range {
	if min > max {
		panic(fmt.Sprintf("types: I64Range min %d > max %d", min, max))
	}
	return Range{typ: TypeI64, minI64: min, maxI64: max}
}

func F32Range(min, max float32) Range {
	if min > max {
		panic(fmt.Sprintf("types: F32Range min %g > max %g", min, max))
	}
	return Range{typ: TypeF32, minF32: min, maxF32: max}
}

func F64Range(min, max float64) Range {
	if min > max {
		panic(fmt.Sprintf("types: F64Range min %g > max %g", min, max))
	}
	return Range{typ: TypeF64, minF64: min, maxF64: max}
}

// StringRange constructs a byte-length range. minLen must be >= 0 and maxLen
// <= 2^31-1.
func StringRange(minLen, maxLen int64) Range {
	if minLen < 0 || maxLen > maxStringLen || minLen > maxLen {
		panic(fmt.Sprintf("types: StringRange invalid bounds [%d,%d]", minLen, maxLen))
	}
	return Range{typ: TypeString, minLen: minLen, maxLen: maxLen}
}

// FullStringRange is the maximal string range used for attributes imported
// from XML without an explicit range.
func FullStringRange() Range { return StringRange(0, maxStringLen) }

// FullRange returns the widest possible range for t, used when materializing
// attributes discovered via XML import.
func FullRange(t Type) Range {
	switch t {
	case TypeBool:
		return BoolRange()
	case TypeI32:
		return I32Range(-1<<31, 1<<31-1)
	case TypeI64:
		return I64Range(-1<<63, 1<<63-1)
	case TypeF32:
		return F32Range(-3.4e38, 3.4e38)
	case TypeF64:
		return F64Range(-1.7e308, 1.7e308)
	case TypeString:
		return FullStringRange()
	default:
		return Range{typ: t}
	}
}

// Type returns the range's tag.
func (r Range) Type() Type { return r.typ }

// CanonicalString renders the range as "<min>|<max>" in canonical textual
// form, as carried in the wire protocol's "ranges" field.
func (r Range) CanonicalString() string {
	switch r.typ {
	case TypeI32:
		return I32Value(r.minI32).CanonicalString() + "|" + I32Value(r.maxI32).CanonicalString()
	case TypeI64:
		return I64Value(r.minI64).CanonicalString() + "|" + I64Value(r.maxI64).CanonicalString()
	case TypeF32:
		return F32Value(r.minF32).CanonicalString() + "|" + F32Value(r.maxF32).CanonicalString()
	case TypeF64:
		return F64Value(r.minF64).CanonicalString() + "|" + F64Value(r.maxF64).CanonicalString()
	case TypeString:
		return I64Value(r.minLen).CanonicalString() + "|" + I64Value(r.maxLen).CanonicalString()
	default:
		return ""
	}
}

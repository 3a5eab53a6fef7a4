package types

import (
	"fmt"
	"strconv"
)

// Value is a tagged sum over the storable column types: NULL, INTEGER and
// VARCHAR. The zero Value is NULL.
//
// Values are small and copied freely; the executor builds []Value rows and
// the schema layer serializes them into record bytes.
type Value struct {
	typ    Type
	intVal int32
	strVal string
}

// NewNullValue returns the NULL value.
func NewNullValue() Value {
	return Value{typ: InvalidType}
}

// NewIntegerValue returns an INTEGER value.
func NewIntegerValue(v int32) Value {
	return Value{typ: IntegerType, intVal: v}
}

// NewVarcharValue returns a VARCHAR value.
func NewVarcharValue(s string) Value {
	return Value{typ: VarcharType, strVal: s}
}

// Type returns the value's tag. NULL values report InvalidType.
func (v Value) Type() Type {
	return v.typ
}

// IsNull reports whether the value is NULL.
func (v Value) IsNull() bool {
	return v.typ == InvalidType
}

// AsInt returns the integer payload. It is an error to call this on a
// non-INTEGER value.
func (v Value) AsInt() (int32, error) {
	if v.typ != IntegerType {
		return 0, fmt.Errorf("value is %s, not INTEGER", v.typ)
	}
	return v.intVal, nil
}

// AsString returns the string payload. It is an error to call this on a
// non-VARCHAR value.
func (v Value) AsString() (string, error) {
	if v.typ != VarcharType {
		return "", fmt.Errorf("value is %s, not VARCHAR", v.typ)
	}
	return v.strVal, nil
}

// SerializedSize returns the number of payload bytes this value occupies in a
// record: 4 for INTEGER, 4 + len for VARCHAR (length prefix), 0 for NULL.
func (v Value) SerializedSize() uint32 {
	switch v.typ {
	case IntegerType:
		return 4
	case VarcharType:
		return 4 + uint32(len(v.strVal))
	default:
		return 0
	}
}

// Equals reports strict equality: same tag and same payload. Two NULLs are
// equal under this relation (used by tests, not WHERE).
func (v Value) Equals(other Value) bool {
	if v.typ != other.typ {
		return false
	}
	switch v.typ {
	case IntegerType:
		return v.intVal == other.intVal
	case VarcharType:
		return v.strVal == other.strVal
	default:
		return true
	}
}

// Compare evaluates `v op other` under the collapsed three-valued logic of
// WHERE clauses: any NULL participant and any cross-type comparison yield
// false, whatever the operator.
func (v Value) Compare(op Predicate, other Value) bool {
	if v.IsNull() || other.IsNull() || v.typ != other.typ {
		return false
	}

	switch v.typ {
	case IntegerType:
		return compareInt32(v.intVal, other.intVal, op)
	case VarcharType:
		return compareString(v.strVal, other.strVal, op)
	default:
		return false
	}
}

// String renders the value for result sets: NULL, the decimal integer, or the
// raw string.
func (v Value) String() string {
	switch v.typ {
	case IntegerType:
		return strconv.FormatInt(int64(v.intVal), 10)
	case VarcharType:
		return v.strVal
	default:
		return "NULL"
	}
}

func compareInt32(a, b int32, op Predicate) bool {
	switch op {
	case Equals:
		return a == b
	case NotEqual:
		return a != b
	case LessThan:
		return a < b
	case LessThanOrEqual:
		return a <= b
	case GreaterThan:
		return a > b
	case GreaterThanOrEqual:
		return a >= b
	default:
		return false
	}
}

func compareString(a, b string, op Predicate) bool {
	switch op {
	case Equals:
		return a == b
	case NotEqual:
		return a != b
	case LessThan:
		return a < b
	case LessThanOrEqual:
		return a <= b
	case GreaterThan:
		return a > b
	case GreaterThanOrEqual:
		return a >= b
	default:
		return false
	}
}

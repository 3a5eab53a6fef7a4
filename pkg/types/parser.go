package types

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseType maps a SQL type name to a column type. Matching is
// case-insensitive; INTEGER/INT map to IntegerType and VARCHAR/TEXT/STRING
// map to VarcharType.
func ParseType(name string) (Type, error) {
	switch strings.ToUpper(name) {
	case "INTEGER", "INT":
		return IntegerType, nil
	case "VARCHAR", "TEXT", "STRING":
		return VarcharType, nil
	default:
		return InvalidType, fmt.Errorf("unknown column type %q", name)
	}
}

// ConvertLiteral coerces a literal's text into a value of the target column
// type. Integer literals must parse as a signed 32-bit number; any string
// converts to VARCHAR unchanged.
func ConvertLiteral(literal string, target Type) (Value, error) {
	switch target {
	case IntegerType:
		n, err := strconv.ParseInt(literal, 10, 32)
		if err != nil {
			return NewNullValue(), fmt.Errorf("cannot convert %q to INTEGER: %w", literal, err)
		}
		return NewIntegerValue(int32(n)), nil
	case VarcharType:
		return NewVarcharValue(literal), nil
	default:
		return NewNullValue(), fmt.Errorf("cannot convert literal to %s", target)
	}
}

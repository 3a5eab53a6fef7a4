// Package tuple defines table schemas and the on-disk row encoding:
// a null bitmap, an offset vector for variable-length columns, the fixed
// payload, then the variable payload.
package tuple

import (
	"tinydb/pkg/types"
)

// DefaultVarcharLength is assumed when a VARCHAR column is declared without
// an explicit maximum length.
const DefaultVarcharLength = 255

// Column describes one column of a table: its name, type, maximum length
// (VARCHAR only, used for maximum record-size accounting, never for runtime
// truncation) and nullability.
type Column struct {
	Name      string
	Type      types.Type
	MaxLength uint32
	Nullable  bool
}

// NewColumn creates a column definition. A zero maxLength on a VARCHAR
// column is replaced by DefaultVarcharLength.
func NewColumn(name string, typ types.Type, maxLength uint32, nullable bool) Column {
	if typ == types.VarcharType && maxLength == 0 {
		maxLength = DefaultVarcharLength
	}
	return Column{Name: name, Type: typ, MaxLength: maxLength, Nullable: nullable}
}

// FixedSize returns the payload size of this column's type when it is
// fixed-length, or 0 for variable-length columns.
func (c Column) FixedSize() uint32 {
	if c.Type == types.IntegerType {
		return 4
	}
	return 0
}

// IsVariableLength reports whether the column stores variable-length data.
func (c Column) IsVariableLength() bool {
	return c.Type == types.VarcharType
}

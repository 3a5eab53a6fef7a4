package tuple

import (
	"encoding/binary"
	"errors"
	"fmt"

	"tinydb/pkg/types"
)

// ErrSchemaMismatch is returned when a value vector does not line up with
// the schema's columns.
var ErrSchemaMismatch = errors.New("values do not match schema")

// Schema is an ordered list of columns with a name lookup side table. It
// serializes value vectors into record bytes and back.
//
// Record layout, little-endian:
//
//	[null bitmap][var offsets][fixed payload][var payload]
//
// The null bitmap has ceil(columns/8) bytes, bit i set meaning column i is
// null. The offset vector holds one u32 per variable-length column with the
// absolute byte offset of that column's length-prefixed data (0 when null);
// it is omitted entirely when the schema has no variable-length columns.
// Fixed payload bytes follow for each non-null fixed column in schema order,
// then each non-null variable column as [u32 length][raw bytes].
type Schema struct {
	columns     []Column
	nameToIndex map[string]int
}

// NewSchema builds a schema from an ordered column list.
func NewSchema(columns []Column) *Schema {
	nameToIndex := make(map[string]int, len(columns))
	for i, col := range columns {
		nameToIndex[col.Name] = i
	}
	return &Schema{columns: columns, nameToIndex: nameToIndex}
}

// Columns returns the ordered column list.
func (s *Schema) Columns() []Column {
	return s.columns
}

// ColumnCount returns the number of columns.
func (s *Schema) ColumnCount() int {
	return len(s.columns)
}

// Column returns the column at index i.
func (s *Schema) Column(i int) (Column, error) {
	if i < 0 || i >= len(s.columns) {
		return Column{}, fmt.Errorf("column index %d out of range", i)
	}
	return s.columns[i], nil
}

// ColumnIndex finds a column's position by name. The second return is false
// when the schema has no such column.
func (s *Schema) ColumnIndex(name string) (int, bool) {
	i, ok := s.nameToIndex[name]
	return i, ok
}

// nullBitmapSize returns ceil(columns/8).
func (s *Schema) nullBitmapSize() uint32 {
	return uint32(len(s.columns)+7) / 8
}

// variableColumnCount counts the VARCHAR columns.
func (s *Schema) variableColumnCount() uint32 {
	count := uint32(0)
	for _, col := range s.columns {
		if col.IsVariableLength() {
			count++
		}
	}
	return count
}

// headerSize is the bitmap plus the var-offset vector.
func (s *Schema) headerSize() uint32 {
	return s.nullBitmapSize() + 4*s.variableColumnCount()
}

// CalculateRecordSize returns the serialized size of the given value vector
// under this schema.
func (s *Schema) CalculateRecordSize(values []types.Value) uint32 {
	size := s.headerSize()
	for _, v := range values {
		size += v.SerializedSize()
	}
	return size
}

// MaxRecordSize returns the largest record this schema can produce: every
// column non-null, every VARCHAR at its maximum length.
func (s *Schema) MaxRecordSize() uint32 {
	size := s.headerSize()
	for _, col := range s.columns {
		if col.IsVariableLength() {
			size += 4 + col.MaxLength
		} else {
			size += col.FixedSize()
		}
	}
	return size
}

// SerializeRecord encodes a value vector into record bytes. The vector must
// have exactly one value per column, with each non-null value matching its
// column's type.
func (s *Schema) SerializeRecord(values []types.Value) ([]byte, error) {
	if len(values) != len(s.columns) {
		return nil, fmt.Errorf("%w: %d values for %d columns", ErrSchemaMismatch, len(values), len(s.columns))
	}
	for i, v := range values {
		if !v.IsNull() && v.Type() != s.columns[i].Type {
			return nil, fmt.Errorf("%w: value %d is %s, column %q is %s",
				ErrSchemaMismatch, i, v.Type(), s.columns[i].Name, s.columns[i].Type)
		}
	}

	buf := make([]byte, s.CalculateRecordSize(values))

	for i, v := range values {
		if v.IsNull() {
			buf[i/8] |= 1 << (uint(i) % 8)
		}
	}

	varOffsetPos := s.nullBitmapSize()
	fixedPos := s.headerSize()
	for i, v := range values {
		if s.columns[i].IsVariableLength() || v.IsNull() {
			continue
		}
		n, _ := v.AsInt()
		binary.LittleEndian.PutUint32(buf[fixedPos:], uint32(n))
		fixedPos += 4
	}

	varPos := fixedPos
	for i, v := range values {
		if !s.columns[i].IsVariableLength() {
			continue
		}
		if v.IsNull() {
			binary.LittleEndian.PutUint32(buf[varOffsetPos:], 0)
			varOffsetPos += 4
			continue
		}
		str, _ := v.AsString()
		binary.LittleEndian.PutUint32(buf[varOffsetPos:], varPos)
		varOffsetPos += 4
		binary.LittleEndian.PutUint32(buf[varPos:], uint32(len(str)))
		varPos += 4
		copy(buf[varPos:], str)
		varPos += uint32(len(str))
	}

	return buf, nil
}

// DeserializeRecord decodes record bytes produced by SerializeRecord back
// into a value vector.
func (s *Schema) DeserializeRecord(data []byte) ([]types.Value, error) {
	if uint32(len(data)) < s.headerSize() {
		return nil, fmt.Errorf("record too small: %d bytes, header needs %d", len(data), s.headerSize())
	}

	values := make([]types.Value, len(s.columns))
	isNull := func(i int) bool {
		return data[i/8]&(1<<(uint(i)%8)) != 0
	}

	fixedPos := s.headerSize()
	for i, col := range s.columns {
		if col.IsVariableLength() || isNull(i) {
			continue
		}
		if uint32(len(data)) < fixedPos+4 {
			return nil, fmt.Errorf("record truncated in fixed payload at column %d", i)
		}
		values[i] = types.NewIntegerValue(int32(binary.LittleEndian.Uint32(data[fixedPos:])))
		fixedPos += 4
	}

	varOffsetPos := s.nullBitmapSize()
	for i, col := range s.columns {
		if !col.IsVariableLength() {
			continue
		}
		offset := binary.LittleEndian.Uint32(data[varOffsetPos:])
		varOffsetPos += 4
		if isNull(i) {
			continue
		}
		if uint32(len(data)) < offset+4 {
			return nil, fmt.Errorf("record truncated in var offset at column %d", i)
		}
		length := binary.LittleEndian.Uint32(data[offset:])
		if uint32(len(data)) < offset+4+length {
			return nil, fmt.Errorf("record truncated in var payload at column %d", i)
		}
		values[i] = types.NewVarcharValue(string(data[offset+4 : offset+4+length]))
	}

	return values, nil
}

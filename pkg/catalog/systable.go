package catalog

import (
	"tinydb/pkg/primitives"
	"tinydb/pkg/tuple"
	"tinydb/pkg/types"
)

// System table identity. The catalog describes itself: both system tables
// have rows in __catalog_tables, and their columns appear in
// __catalog_columns like any user table's.
const (
	TablesTableName  = "__catalog_tables"
	ColumnsTableName = "__catalog_columns"

	TablesTableID  primitives.TableID = 0
	ColumnsTableID primitives.TableID = 1

	// FirstUserTableID is the first id handed to CREATE TABLE.
	FirstUserTableID primitives.TableID = 2
)

// systemNameLength bounds table and column names stored in the catalog.
const systemNameLength = 64

// tablesSchema returns the schema of __catalog_tables:
// (table_id, table_name, first_page_id).
func tablesSchema() *tuple.Schema {
	return tuple.NewSchema([]tuple.Column{
		tuple.NewColumn("table_id", types.IntegerType, 0, false),
		tuple.NewColumn("table_name", types.VarcharType, systemNameLength, false),
		tuple.NewColumn("first_page_id", types.IntegerType, 0, false),
	})
}

// columnsSchema returns the schema of __catalog_columns:
// (table_id, column_name, column_type, column_length, column_index).
// column_type stores the types.Type tag; column_index is the column's
// position in its schema, so a load-time sort restores column order.
func columnsSchema() *tuple.Schema {
	return tuple.NewSchema([]tuple.Column{
		tuple.NewColumn("table_id", types.IntegerType, 0, false),
		tuple.NewColumn("column_name", types.VarcharType, systemNameLength, false),
		tuple.NewColumn("column_type", types.IntegerType, 0, false),
		tuple.NewColumn("column_length", types.IntegerType, 0, false),
		tuple.NewColumn("column_index", types.IntegerType, 0, false),
	})
}

// tableRow encodes a __catalog_tables row.
func tableRow(tid primitives.TableID, name string, firstPage primitives.PageID) []types.Value {
	return []types.Value{
		types.NewIntegerValue(int32(tid)),
		types.NewVarcharValue(name),
		types.NewIntegerValue(int32(firstPage)),
	}
}

// columnRow encodes a __catalog_columns row for the column at index idx.
func columnRow(tid primitives.TableID, col tuple.Column, idx int) []types.Value {
	return []types.Value{
		types.NewIntegerValue(int32(tid)),
		types.NewVarcharValue(col.Name),
		types.NewIntegerValue(int32(col.Type)),
		types.NewIntegerValue(int32(col.MaxLength)),
		types.NewIntegerValue(int32(idx)),
	}
}
